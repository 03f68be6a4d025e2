package ratecard

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// Store keeps a catalog and rate table in SQL so several deployments can share
// one source. It is read at startup; the loaded tables are immutable.
type Store struct {
	db     *sqlx.DB
	driver string
}

const storeSchema = `
CREATE TABLE IF NOT EXISTS catalog_services (
	domain           TEXT NOT NULL,
	service          TEXT NOT NULL,
	min_hours        TEXT NOT NULL,
	max_hours        TEXT NOT NULL,
	domain_position  INTEGER NOT NULL,
	service_position INTEGER NOT NULL,
	PRIMARY KEY (domain, service)
);

CREATE TABLE IF NOT EXISTS rate_amounts (
	key       TEXT PRIMARY KEY,
	min_value TEXT NOT NULL,
	max_value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS flat_fees (
	service TEXT PRIMARY KEY,
	amount  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS fixed_fees (
	name     TEXT PRIMARY KEY,
	amount   TEXT NOT NULL,
	position INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS rate_settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

const (
	keyHourlyRate   = "standard_hourly_rate"
	keySurcharge    = "urgency_surcharge"
	keyConsultation = "initial_consultation_fee"
	keyCurrency     = "currency"
)

func OpenStore(driver, dsn string) (*Store, error) {
	switch driver {
	case "sqlite":
		if !strings.Contains(dsn, "?") {
			dsn += "?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)"
		}
	case "postgres":
	default:
		return nil, fmt.Errorf("unsupported db driver %q (want sqlite or postgres)", driver)
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == "sqlite" {
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(storeSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db, driver: driver}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type serviceRow struct {
	Domain          string `db:"domain"`
	Service         string `db:"service"`
	MinHours        string `db:"min_hours"`
	MaxHours        string `db:"max_hours"`
	DomainPosition  int    `db:"domain_position"`
	ServicePosition int    `db:"service_position"`
}

type amountRow struct {
	Key      string `db:"key"`
	MinValue string `db:"min_value"`
	MaxValue string `db:"max_value"`
}

type flatFeeRow struct {
	Service string `db:"service"`
	Amount  string `db:"amount"`
}

type fixedFeeRow struct {
	Name     string `db:"name"`
	Amount   string `db:"amount"`
	Position int    `db:"position"`
}

type settingRow struct {
	Key   string `db:"key"`
	Value string `db:"value"`
}

// Replace overwrites the stored tables in one transaction.
func (s *Store) Replace(ctx context.Context, catalog *Catalog, rates *RateTable) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"catalog_services", "rate_amounts", "flat_fees", "fixed_fees", "rate_settings"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	insertService := tx.Rebind(`INSERT INTO catalog_services (domain, service, min_hours, max_hours, domain_position, service_position) VALUES (?, ?, ?, ?, ?, ?)`)
	for di, d := range catalog.Domains() {
		for si, svc := range d.Services {
			if _, err := tx.ExecContext(ctx, insertService, d.Name, svc.Name, svc.Hours.Min.String(), svc.Hours.Max.String(), di, si); err != nil {
				return fmt.Errorf("insert service %s/%s: %w", d.Name, svc.Name, err)
			}
		}
	}

	insertAmount := tx.Rebind(`INSERT INTO rate_amounts (key, min_value, max_value) VALUES (?, ?, ?)`)
	amounts := map[string]Amount{keySurcharge: Fixed(rates.UrgencySurcharge())}
	if h, ok := rates.HourlyRate(); ok {
		amounts[keyHourlyRate] = h
	}
	if c, ok := rates.InitialConsultationFee(); ok {
		amounts[keyConsultation] = Fixed(c)
	}
	for key, a := range amounts {
		if _, err := tx.ExecContext(ctx, insertAmount, key, a.Min.String(), a.Max.String()); err != nil {
			return fmt.Errorf("insert %s: %w", key, err)
		}
	}

	insertFlat := tx.Rebind(`INSERT INTO flat_fees (service, amount) VALUES (?, ?)`)
	for service, fee := range rates.flatFees {
		if _, err := tx.ExecContext(ctx, insertFlat, service, fee.String()); err != nil {
			return fmt.Errorf("insert flat fee %s: %w", service, err)
		}
	}

	insertFixed := tx.Rebind(`INSERT INTO fixed_fees (name, amount, position) VALUES (?, ?, ?)`)
	for i, f := range rates.FixedFees() {
		if _, err := tx.ExecContext(ctx, insertFixed, f.Name, f.Amount.String(), i); err != nil {
			return fmt.Errorf("insert fixed fee %s: %w", f.Name, err)
		}
	}

	insertSetting := tx.Rebind(`INSERT INTO rate_settings (key, value) VALUES (?, ?)`)
	if _, err := tx.ExecContext(ctx, insertSetting, keyCurrency, rates.Currency()); err != nil {
		return fmt.Errorf("insert currency: %w", err)
	}

	return tx.Commit()
}

// Load reads both tables and runs them through the same validation as the
// YAML loaders.
func (s *Store) Load(ctx context.Context) (*Catalog, *RateTable, error) {
	catalog, err := s.loadCatalog(ctx)
	if err != nil {
		return nil, nil, err
	}
	rates, err := s.loadRates(ctx)
	if err != nil {
		return nil, nil, err
	}
	return catalog, rates, nil
}

func (s *Store) loadCatalog(ctx context.Context) (*Catalog, error) {
	var rows []serviceRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT domain, service, min_hours, max_hours, domain_position, service_position
		FROM catalog_services ORDER BY domain_position, service_position`); err != nil {
		return nil, fmt.Errorf("select catalog: %w", err)
	}
	var spec CatalogSpec
	index := map[string]int{}
	for _, r := range rows {
		hours, err := parseAmountRow(r.MinHours, r.MaxHours)
		if err != nil {
			return nil, fmt.Errorf("catalog %s/%s: %w", r.Domain, r.Service, err)
		}
		i, ok := index[r.Domain]
		if !ok {
			i = len(spec.Domains)
			index[r.Domain] = i
			spec.Domains = append(spec.Domains, DomainSpec{Name: r.Domain})
		}
		spec.Domains[i].Services = append(spec.Domains[i].Services, ServiceSpec{Name: r.Service, Hours: hours})
	}
	return NewCatalog(spec)
}

func (s *Store) loadRates(ctx context.Context) (*RateTable, error) {
	spec := RateSpec{FlatFees: map[string]Amount{}}

	var amounts []amountRow
	if err := s.db.SelectContext(ctx, &amounts, `SELECT key, min_value, max_value FROM rate_amounts`); err != nil {
		return nil, fmt.Errorf("select rate amounts: %w", err)
	}
	for _, r := range amounts {
		a, err := parseAmountRow(r.MinValue, r.MaxValue)
		if err != nil {
			return nil, fmt.Errorf("rate %s: %w", r.Key, err)
		}
		switch r.Key {
		case keyHourlyRate:
			spec.StandardHourlyRate = &a
		case keySurcharge:
			spec.UrgencySurcharge = a
		case keyConsultation:
			spec.InitialConsultationFee = &a
		}
	}

	var flats []flatFeeRow
	if err := s.db.SelectContext(ctx, &flats, `SELECT service, amount FROM flat_fees`); err != nil {
		return nil, fmt.Errorf("select flat fees: %w", err)
	}
	for _, r := range flats {
		v, err := decimal.NewFromString(r.Amount)
		if err != nil {
			return nil, fmt.Errorf("flat fee %s: %w", r.Service, err)
		}
		spec.FlatFees[r.Service] = Fixed(v)
	}

	var fixed []fixedFeeRow
	if err := s.db.SelectContext(ctx, &fixed, `SELECT name, amount, position FROM fixed_fees ORDER BY position`); err != nil {
		return nil, fmt.Errorf("select fixed fees: %w", err)
	}
	for _, r := range fixed {
		v, err := decimal.NewFromString(r.Amount)
		if err != nil {
			return nil, fmt.Errorf("fixed fee %s: %w", r.Name, err)
		}
		spec.FixedFees = append(spec.FixedFees, FeeSpec{Name: r.Name, Amount: Fixed(v)})
	}

	var settings []settingRow
	if err := s.db.SelectContext(ctx, &settings, `SELECT key, value FROM rate_settings`); err != nil {
		return nil, fmt.Errorf("select rate settings: %w", err)
	}
	for _, r := range settings {
		if r.Key == keyCurrency {
			spec.Currency = r.Value
		}
	}
	return NewRateTable(spec)
}

func parseAmountRow(minValue, maxValue string) (Amount, error) {
	lo, err := decimal.NewFromString(minValue)
	if err != nil {
		return Amount{}, err
	}
	hi, err := decimal.NewFromString(maxValue)
	if err != nil {
		return Amount{}, err
	}
	return Between(lo, hi), nil
}
