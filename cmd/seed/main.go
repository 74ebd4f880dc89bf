// Command seed loads the development tour fixtures into the database or
// removes every tour.
//
//	seed --import [--file dev-data/data/tours.json]
//	seed --delete
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/tourbook/tours-api/internal/config"
	"github.com/tourbook/tours-api/internal/database"
	"github.com/tourbook/tours-api/internal/logger"
	"github.com/tourbook/tours-api/internal/model"
	"github.com/tourbook/tours-api/internal/repository"
)

// tourWriter is the part of the tour repository the seeder needs.
type tourWriter interface {
	Insert(ctx context.Context, t *model.Tour) error
	DeleteAll(ctx context.Context) (int64, error)
}

func main() {
	var (
		doImport = flag.Bool("import", false, "insert every tour from the fixture file")
		doDelete = flag.Bool("delete", false, "delete all tours")
		file     = flag.String("file", "dev-data/data/tours.json", "fixture file to import")
	)
	flag.Parse()

	if *doImport == *doDelete {
		fmt.Fprintln(os.Stderr, "usage: seed --import | --delete")
		os.Exit(1)
	}

	cfg := config.Load()
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer log.Sync() //nolint:errcheck

	if err := run(cfg, log, *doImport, *file); err != nil {
		log.Error("seed failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg config.Config, log *zap.Logger, doImport bool, file string) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := database.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		return err
	}
	tours := repository.NewTourRepo(db, log)

	if !doImport {
		n, err := tours.DeleteAll(ctx)
		if err != nil {
			return err
		}
		log.Info("data successfully deleted", zap.Int64("tours", n))
		return nil
	}

	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()
	n, err := importTours(ctx, tours, f)
	if err != nil {
		return err
	}
	log.Info("data successfully imported", zap.Int("tours", n), zap.String("file", file))
	return nil
}

// importTours decodes a JSON array of tours and inserts them one by one.  It
// stops at the first tour that fails and reports its position.
func importTours(ctx context.Context, tours tourWriter, r io.Reader) (int, error) {
	var docs []*model.Tour
	if err := json.NewDecoder(r).Decode(&docs); err != nil {
		return 0, fmt.Errorf("decode fixtures: %w", err)
	}
	if len(docs) == 0 {
		return 0, errors.New("fixture file contains no tours")
	}
	for i, t := range docs {
		t.ID = ""
		if err := tours.Insert(ctx, t); err != nil {
			return i, fmt.Errorf("tour %d (%q): %w", i, t.Name, err)
		}
	}
	return len(docs), nil
}
