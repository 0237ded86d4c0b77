// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yana Framework Contributors

//go:build integration

package store_test

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/yanaFramework/yanaFramework-sub012/internal/store"
)

// startPostgres starts a PostgreSQL container and returns its DSN.
func startPostgres(ctx context.Context) (string, func(), error) {
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("yana_test"),
		postgres.WithUsername("yana"),
		postgres.WithPassword("yana"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return "", nil, err
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		return "", nil, err
	}
	return dsn, func() { _ = container.Terminate(ctx) }, nil
}

var _ = Describe("Activation overrides", Ordered, func() {
	var (
		ctx       context.Context
		dsn       string
		terminate func()
		pool      *pgxpool.Pool
		migrator  *store.Migrator
	)

	BeforeAll(func() {
		ctx = context.Background()
		var err error
		dsn, terminate, err = startPostgres(ctx)
		Expect(err).NotTo(HaveOccurred())

		migrator, err = store.NewMigrator(dsn)
		Expect(err).NotTo(HaveOccurred())

		pool, err = store.Connect(ctx, dsn, store.DefaultRetryPolicy)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterAll(func() {
		if pool != nil {
			pool.Close()
		}
		if migrator != nil {
			_ = migrator.Close()
		}
		if terminate != nil {
			terminate()
		}
	})

	Describe("Migrator", func() {
		It("starts with every migration pending", func() {
			version, dirty, err := migrator.Version()
			Expect(err).NotTo(HaveOccurred())
			Expect(version).To(BeZero())
			Expect(dirty).To(BeFalse())

			pending, err := migrator.PendingMigrations()
			Expect(err).NotTo(HaveOccurred())
			Expect(pending).To(Equal([]uint{1, 2}))
		})

		It("applies, steps back and reapplies", func() {
			Expect(migrator.Up()).To(Succeed())

			version, _, err := migrator.Version()
			Expect(err).NotTo(HaveOccurred())
			Expect(version).To(Equal(uint(2)))

			Expect(migrator.Steps(-1)).To(Succeed())
			version, _, err = migrator.Version()
			Expect(err).NotTo(HaveOccurred())
			Expect(version).To(Equal(uint(1)))

			Expect(migrator.Up()).To(Succeed())
			applied, err := migrator.AppliedMigrations()
			Expect(err).NotTo(HaveOccurred())
			Expect(applied).To(Equal([]uint{1, 2}))
		})
	})

	Describe("PostgresOverrides", func() {
		var overrides *store.PostgresOverrides

		BeforeEach(func() {
			overrides = store.NewPostgresOverrides(pool, store.WithChangedBy("integration"))
			_, err := pool.Exec(ctx, `TRUNCATE plugin_activation`)
			Expect(err).NotTo(HaveOccurred())
		})

		It("reports missing overrides as not found", func() {
			_, found, err := overrides.Lookup(ctx, "audit")
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeFalse())
		})

		It("upserts and records who changed the row", func() {
			Expect(overrides.Set(ctx, "audit", false)).To(Succeed())
			Expect(overrides.Set(ctx, "audit", true)).To(Succeed())

			active, found, err := overrides.Lookup(ctx, "audit")
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeTrue())
			Expect(active).To(BeTrue())

			var changedBy string
			err = pool.QueryRow(ctx,
				`SELECT changed_by FROM plugin_activation WHERE plugin_id = $1`, "audit").Scan(&changedBy)
			Expect(err).NotTo(HaveOccurred())
			Expect(changedBy).To(Equal("integration"))
		})

		It("lists and deletes overrides", func() {
			Expect(overrides.Set(ctx, "audit", false)).To(Succeed())
			Expect(overrides.Set(ctx, "echo", true)).To(Succeed())

			all, err := overrides.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(Equal(map[string]bool{"audit": false, "echo": true}))

			Expect(overrides.Delete(ctx, "audit")).To(Succeed())
			all, err = overrides.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(Equal(map[string]bool{"echo": true}))
		})
	})
})
