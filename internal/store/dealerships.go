package store

import (
	"context"
	"encoding/json"

	"github.com/silverfox/cao-engine/internal/domain"
)

// DealershipConfig returns one dealership's configuration.
func (s *Store) DealershipConfig(ctx context.Context, name string) (domain.DealershipConfig, error) {
	var cfg domain.DealershipConfig
	var filterRaw, outputRaw []byte
	err := s.db.QueryRow(ctx, `
		SELECT name, is_active, filtering_rules, output_rules, qr_output_path
		FROM dealership_configs WHERE name = $1
	`, name).Scan(&cfg.Name, &cfg.IsActive, &filterRaw, &outputRaw, &cfg.QROutputPath)
	if err != nil {
		if err == pgxNoRows {
			return domain.DealershipConfig{}, ErrNotFound
		}
		return domain.DealershipConfig{}, err
	}
	if err := json.Unmarshal(filterRaw, &cfg.FilterRules); err != nil {
		return domain.DealershipConfig{}, err
	}
	if err := json.Unmarshal(outputRaw, &cfg.OutputRules); err != nil {
		return domain.DealershipConfig{}, err
	}
	return cfg, nil
}

// ListDealershipConfigs returns every configured dealership.
func (s *Store) ListDealershipConfigs(ctx context.Context) ([]domain.DealershipConfig, error) {
	rows, err := s.db.Query(ctx, `
		SELECT name, is_active, filtering_rules, output_rules, qr_output_path
		FROM dealership_configs ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.DealershipConfig, 0)
	for rows.Next() {
		var cfg domain.DealershipConfig
		var filterRaw, outputRaw []byte
		if err := rows.Scan(&cfg.Name, &cfg.IsActive, &filterRaw, &outputRaw, &cfg.QROutputPath); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(filterRaw, &cfg.FilterRules); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(outputRaw, &cfg.OutputRules); err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, rows.Err()
}

// UpsertDealershipConfig creates or edits a dealership's configuration.
// Unknown keys in the persisted JSON are preserved verbatim by round
// tripping through json.RawMessage at the handler layer before this call;
// Store itself only ever (de)serializes the struct it knows about.
func (s *Store) UpsertDealershipConfig(ctx context.Context, cfg domain.DealershipConfig) error {
	filterRaw, err := json.Marshal(cfg.FilterRules)
	if err != nil {
		return err
	}
	outputRaw, err := json.Marshal(cfg.OutputRules)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO dealership_configs (name, is_active, filtering_rules, output_rules, qr_output_path)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (name) DO UPDATE SET
			is_active = EXCLUDED.is_active,
			filtering_rules = EXCLUDED.filtering_rules,
			output_rules = EXCLUDED.output_rules,
			qr_output_path = EXCLUDED.qr_output_path
	`, cfg.Name, cfg.IsActive, filterRaw, outputRaw, cfg.QROutputPath)
	return err
}
