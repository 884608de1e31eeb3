package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/AntonStoeckl/library-circulation-go/circulation"
	"github.com/AntonStoeckl/library-circulation-go/circulation/postgresengine"
	"github.com/AntonStoeckl/library-circulation-go/example/config"
)

// SeedManifest describes the initial catalogue and membership snapshot loaded
// by the seed command.
type SeedManifest struct {
	Books   []SeedBook   `yaml:"books"`
	Members []SeedMember `yaml:"members"`
}

// SeedBook is one catalogue entry of the manifest.
type SeedBook struct {
	Title           string     `yaml:"title"`
	Author          string     `yaml:"author"`
	ISBN            string     `yaml:"isbn"`
	PublicationDate *time.Time `yaml:"publication_date,omitempty"`
	Description     string     `yaml:"description,omitempty"`
	TotalCopies     int        `yaml:"total_copies"`
}

// SeedMember is one member entry of the manifest.
type SeedMember struct {
	Name       string `yaml:"name"`
	MemberCode string `yaml:"member_code"`
	Email      string `yaml:"email,omitempty"`
	Phone      string `yaml:"phone,omitempty"`
	Active     *bool  `yaml:"active,omitempty"`
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <manifest.yaml>",
		Short: "Load books and members from a YAML manifest",
		Long: `Load an initial catalogue and membership snapshot from a YAML manifest.

Example manifest:

  books:
    - title: The Go Programming Language
      author: Donovan, Kernighan
      isbn: 978-0134190440
      total_copies: 3
  members:
    - name: Ada Lovelace
      member_code: M-0001
      email: ada@example.org`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), rootOpts, args[0])
		},
	}
}

func runSeed(ctx context.Context, opts *RootOptions, manifestPath string) error {
	logger := newLogger(opts)

	manifest, loadErr := loadSeedManifest(manifestPath)
	if loadErr != nil {
		return loadErr
	}

	pool, poolErr := pgxpool.NewWithConfig(ctx, config.PostgresPGXPoolConfig())
	if poolErr != nil {
		return fmt.Errorf("connect to database: %w", poolErr)
	}
	defer pool.Close()

	handle, handleErr := postgresengine.NewDBHandleFromPGXPool(pool, postgresengine.WithLogger(logger))
	if handleErr != nil {
		return fmt.Errorf("create database handle: %w", handleErr)
	}

	ledger := postgresengine.NewInventoryLedger(handle)
	members := postgresengine.NewMemberDirectory(handle)

	for _, entry := range manifest.Books {
		book, buildErr := circulation.BuildBook(uuid.New(), entry.Title, entry.Author, circulation.ISBNString(entry.ISBN), entry.TotalCopies)
		if buildErr != nil {
			return fmt.Errorf("invalid book %q: %w", entry.Title, buildErr)
		}

		book.PublicationDate = entry.PublicationDate
		book.Description = entry.Description

		if addErr := ledger.AddBook(ctx, book); addErr != nil {
			return fmt.Errorf("add book %q: %w", entry.Title, addErr)
		}
	}

	for _, entry := range manifest.Members {
		member, buildErr := circulation.BuildMember(uuid.New(), entry.Name, circulation.MemberCodeString(entry.MemberCode))
		if buildErr != nil {
			return fmt.Errorf("invalid member %q: %w", entry.Name, buildErr)
		}

		member.Email = entry.Email
		member.Phone = entry.Phone
		member.JoinedAt = time.Now()

		if entry.Active != nil {
			member.Active = *entry.Active
		}

		if addErr := members.AddMember(ctx, member); addErr != nil {
			return fmt.Errorf("add member %q: %w", entry.Name, addErr)
		}
	}

	logger.Info("seed completed", "books", len(manifest.Books), "members", len(manifest.Members))

	return nil
}

func loadSeedManifest(path string) (SeedManifest, error) {
	data, readErr := os.ReadFile(path)
	if readErr != nil {
		return SeedManifest{}, fmt.Errorf("read manifest: %w", readErr)
	}

	var manifest SeedManifest
	if unmarshalErr := yaml.Unmarshal(data, &manifest); unmarshalErr != nil {
		return SeedManifest{}, fmt.Errorf("parse manifest: %w", unmarshalErr)
	}

	return manifest, nil
}
