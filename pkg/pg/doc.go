// Package pg wraps pgx/v5 pool setup, goose migrations from an embedded
// filesystem, health checks, and SQLSTATE classification helpers.
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	if err := pg.Migrate(ctx, pool, pgstore.Migrations, "migrations", cfg, log); err != nil {
//		return err
//	}
//
// Stores depend on the DB interface rather than *pgxpool.Pool so they can be
// exercised with pgxmock.
package pg
