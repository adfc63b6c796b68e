package ingest

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/revenue-cli/internal/model"
	"github.com/sells-group/revenue-cli/internal/tabfile"
)

// Table base names looked up in the input directory, with .csv preferred
// over .xlsx when both exist.
const (
	TableSubscriptions = "subscriptions"
	TableOrganizations = "organizations"
	TableMemberships   = "memberships"
	TableUsers         = "users"
	TableSnapshots     = "arr_snapshots"
	TableRedemptions   = "promo_redemptions"
)

// Inputs is the fully-normalized read-once snapshot of all input tables
// for a single run. Components receive it by value reference and never
// reach outside it.
type Inputs struct {
	Subscriptions []model.SubscriptionFact
	Orgs          []model.Org
	Memberships   []model.Membership
	Users         []model.UserIdentity
	Snapshots     []model.SnapshotRow
	Redemptions   []model.PromoRedemption

	Stats map[string]ParseStats
}

// loadTable reads <dir>/<name>.csv or <dir>/<name>.xlsx. Returns nil with
// no error when the table is absent and not required; a missing required
// table is a fatal configuration error naming the table.
func loadTable(dir, name string, required bool) (*Table, error) {
	for _, ext := range []string{".csv", ".xlsx"} {
		path := filepath.Join(dir, name+ext)
		if _, err := os.Stat(path); err != nil {
			continue
		}

		var header []string
		var rows [][]string
		var err error
		if ext == ".csv" {
			header, rows, err = tabfile.ReadCSV(path)
		} else {
			header, rows, err = tabfile.ReadXLSX(path)
		}
		if err != nil {
			return nil, err
		}
		return NewTable(name, header, rows), nil
	}

	if required {
		return nil, eris.Errorf("ingest: required input table %q not found in %s (.csv or .xlsx)", name, dir)
	}
	return nil, nil
}

// LoadInputs reads and normalizes every input table from dir. Required
// tables: subscriptions, organizations, memberships, users. Optional:
// arr_snapshots, promo_redemptions. Tables load in parallel; the first
// configuration error aborts the whole load.
func LoadInputs(ctx context.Context, dir, aliasesPath string) (*Inputs, error) {
	overrides, err := LoadAliasOverrides(aliasesPath)
	if err != nil {
		return nil, err
	}

	in := &Inputs{Stats: make(map[string]ParseStats)}
	var mu sync.Mutex

	record := func(name string, stats ParseStats) {
		mu.Lock()
		in.Stats[name] = stats
		mu.Unlock()
	}

	g, _ := errgroup.WithContext(ctx)

	g.Go(func() error {
		t, err := loadTable(dir, TableSubscriptions, true)
		if err != nil {
			return err
		}
		facts, stats, err := ParseSubscriptions(t, overrides)
		if err != nil {
			return err
		}
		mu.Lock()
		in.Subscriptions = facts
		mu.Unlock()
		record(TableSubscriptions, stats)
		return nil
	})

	g.Go(func() error {
		t, err := loadTable(dir, TableOrganizations, true)
		if err != nil {
			return err
		}
		orgs, stats, err := ParseOrgs(t, overrides)
		if err != nil {
			return err
		}
		mu.Lock()
		in.Orgs = orgs
		mu.Unlock()
		record(TableOrganizations, stats)
		return nil
	})

	g.Go(func() error {
		t, err := loadTable(dir, TableMemberships, true)
		if err != nil {
			return err
		}
		members, stats, err := ParseMemberships(t, overrides)
		if err != nil {
			return err
		}
		mu.Lock()
		in.Memberships = members
		mu.Unlock()
		record(TableMemberships, stats)
		return nil
	})

	g.Go(func() error {
		t, err := loadTable(dir, TableUsers, true)
		if err != nil {
			return err
		}
		users, stats, err := ParseUsers(t, overrides)
		if err != nil {
			return err
		}
		mu.Lock()
		in.Users = users
		mu.Unlock()
		record(TableUsers, stats)
		return nil
	})

	g.Go(func() error {
		t, err := loadTable(dir, TableSnapshots, false)
		if err != nil || t == nil {
			return err
		}
		rows, stats, err := ParseSnapshots(t, overrides)
		if err != nil {
			return err
		}
		mu.Lock()
		in.Snapshots = rows
		mu.Unlock()
		record(TableSnapshots, stats)
		return nil
	})

	g.Go(func() error {
		t, err := loadTable(dir, TableRedemptions, false)
		if err != nil || t == nil {
			return err
		}
		reds, stats, err := ParseRedemptions(t, overrides)
		if err != nil {
			return err
		}
		mu.Lock()
		in.Redemptions = reds
		mu.Unlock()
		record(TableRedemptions, stats)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	zap.L().Info("ingest: inputs loaded",
		zap.Int("subscriptions", len(in.Subscriptions)),
		zap.Int("orgs", len(in.Orgs)),
		zap.Int("memberships", len(in.Memberships)),
		zap.Int("users", len(in.Users)),
		zap.Int("snapshots", len(in.Snapshots)),
		zap.Int("redemptions", len(in.Redemptions)),
	)
	return in, nil
}

// TotalRows sums raw row counts across all parsed tables.
func (in *Inputs) TotalRows() int {
	total := 0
	for _, s := range in.Stats {
		total += s.Rows
	}
	return total
}
