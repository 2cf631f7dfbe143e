package mapping

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/jackc/pgx/v5"

	"github.com/alexanderkiel/flare/internal/platform/fhir"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrations returns the schema of the Postgres catalogue.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrations, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

// PGCatalogue reads mappings from the term_code_* tables. Fixed criteria come
// out in criterion_position order, the order they were authored in.
type PGCatalogue struct {
	db queryable
}

func NewPGCatalogue(db queryable) *PGCatalogue {
	return &PGCatalogue{db: db}
}

const (
	selectMappings = `SELECT key_system, key_code, COALESCE(key_display, ''), resource_type,
	term_code_search_parameter, COALESCE(value_search_parameter, '')
FROM term_code_mapping ORDER BY key_system, key_code`

	selectAttributes = `SELECT key_system, key_code, attribute_system, attribute_code,
	COALESCE(attribute_display, ''), search_parameter
FROM term_code_attribute_mapping ORDER BY key_system, key_code, attribute_system, attribute_code`

	selectFixedCriteria = `SELECT key_system, key_code, search_parameter, value_system, value_code,
	COALESCE(value_display, '')
FROM term_code_fixed_criterion ORDER BY key_system, key_code, criterion_position, search_parameter, position`
)

func (r *PGCatalogue) Mappings(ctx context.Context) ([]Mapping, error) {
	var mappings []Mapping
	index := make(map[fhir.CodingKey]int)

	err := r.scan(ctx, selectMappings, func(rows pgx.Rows) error {
		var m Mapping
		if err := rows.Scan(&m.Key.System, &m.Key.Code, &m.Key.Display, &m.ResourceType,
			&m.TermCodeSearchParameter, &m.ValueSearchParameter); err != nil {
			return err
		}
		index[m.Key.Key()] = len(mappings)
		mappings = append(mappings, m)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read term code mappings: %w", err)
	}

	err = r.scan(ctx, selectAttributes, func(rows pgx.Rows) error {
		var key, attr fhir.Coding
		var param string
		if err := rows.Scan(&key.System, &key.Code, &attr.System, &attr.Code, &attr.Display, &param); err != nil {
			return err
		}
		i, ok := index[key.Key()]
		if !ok {
			return nil
		}
		mappings[i].AttributeSearchParameters = append(mappings[i].AttributeSearchParameters,
			AttributeSearchParameter{AttributeKey: attr, SearchParameter: param})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read attribute mappings: %w", err)
	}

	err = r.scan(ctx, selectFixedCriteria, func(rows pgx.Rows) error {
		var key, value fhir.Coding
		var param string
		if err := rows.Scan(&key.System, &key.Code, &param, &value.System, &value.Code, &value.Display); err != nil {
			return err
		}
		i, ok := index[key.Key()]
		if !ok {
			return nil
		}
		m := &mappings[i]
		if n := len(m.FixedCriteria); n > 0 && m.FixedCriteria[n-1].SearchParameter == param {
			m.FixedCriteria[n-1].Values = append(m.FixedCriteria[n-1].Values, value)
		} else {
			m.FixedCriteria = append(m.FixedCriteria, FixedCriterion{SearchParameter: param, Values: []fhir.Coding{value}})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read fixed criteria: %w", err)
	}

	return mappings, nil
}

func (r *PGCatalogue) scan(ctx context.Context, sql string, fn func(pgx.Rows) error) error {
	rows, err := r.db.Query(ctx, sql)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}
