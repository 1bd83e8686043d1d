// Package backend opens the photo cache named by a connection string.
package backend

import (
	"context"
	"net/url"
	"strings"

	"github.com/jmgilman/go/errors"

	"github.com/roverlens/marsphotos/pkg/storage"
	"github.com/roverlens/marsphotos/pkg/storage/mongo"
	pgstore "github.com/roverlens/marsphotos/pkg/storage/postgres"
	"github.com/roverlens/marsphotos/pkg/storage/sqlite"
)

// Kind identifies a storage backend.
type Kind string

const (
	Postgres Kind = "postgres"
	Mongo    Kind = "mongo"
	SQLite   Kind = "sqlite"
)

// Detect maps a DSN scheme to a backend.
//
//	postgres://, postgresql://   Postgres
//	mongodb://, mongodb+srv://   Mongo
//	sqlite://<path>, file:<path> SQLite
func Detect(dsn string) (Kind, error) {
	scheme, _, ok := strings.Cut(dsn, ":")
	if !ok {
		return "", errors.Newf(errors.CodeInvalidConfig, "database url %q has no scheme", redact(dsn))
	}
	switch strings.ToLower(scheme) {
	case "postgres", "postgresql":
		return Postgres, nil
	case "mongodb", "mongodb+srv":
		return Mongo, nil
	case "sqlite", "file":
		return SQLite, nil
	default:
		return "", errors.Newf(errors.CodeInvalidConfig, "unsupported database scheme %q", scheme)
	}
}

// Open connects to the backend selected by dsn.
func Open(ctx context.Context, dsn string) (storage.Store, error) {
	kind, err := Detect(dsn)
	if err != nil {
		return nil, err
	}

	switch kind {
	case Postgres:
		pool, err := pgstore.NewDB(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return pgstore.NewRepository(pool), nil
	case Mongo:
		repo, err := mongo.Connect(ctx, dsn, mongoDatabase(dsn))
		if err != nil {
			return nil, err
		}
		return repo, nil
	default:
		repo, err := sqlite.Open(sqlitePath(dsn))
		if err != nil {
			return nil, err
		}
		return repo, nil
	}
}

// sqlitePath strips the sqlite:// prefix; file: URIs go to the driver as is.
func sqlitePath(dsn string) string {
	if rest, ok := strings.CutPrefix(dsn, "sqlite://"); ok {
		return rest
	}
	return dsn
}

// mongoDatabase returns the database named in the URI path, if any.
func mongoDatabase(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Path, "/")
}

// redact drops credentials so a DSN can appear in an error message.
func redact(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	return u.Redacted()
}
