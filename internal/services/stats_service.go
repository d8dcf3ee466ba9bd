// Package services – StatsService
//
// Dataset-level reporting: aggregate statistics for the stored interactions
// and a JSONL export of terminally verified records, suitable for building
// training or audit datasets downstream.
package services

import (
	"context"
	"encoding/json"
	"io"

	"gorm.io/gorm"

	"github.com/omniguard/go-moderation-backend/internal/domain"
	"github.com/omniguard/go-moderation-backend/internal/lifecycle"
	"github.com/omniguard/go-moderation-backend/internal/repo"

	"go.opentelemetry.io/otel"
)

// StatsService computes dataset aggregates and exports.
type StatsService struct {
	DB *gorm.DB
}

// Overview returns the dataset-wide breakdown.
func (s *StatsService) Overview(ctx context.Context) (*repo.DatasetStats, error) {
	tr := otel.Tracer("services/StatsService")
	ctx, span := tr.Start(ctx, "Overview")
	defer span.End()

	stats, err := repo.CollectDatasetStats(ctx, s.DB)
	if err != nil {
		return nil, storeErr(err)
	}
	return stats, nil
}

// exportRecord is the JSONL line shape: the verified verdict plus the turn
// it was rendered over.
type exportRecord struct {
	ID              string   `json:"id"`
	Instructions    string   `json:"instructions,omitempty"`
	Input           string   `json:"input"`
	Output          string   `json:"output,omitempty"`
	Compliant       *bool    `json:"compliant"`
	RulesViolated   []string `json:"rules_violated"`
	SchemaViolation bool     `json:"schema_violation"`
	Verifier        string   `json:"verifier"`
	Action          string   `json:"action,omitempty"`
	RuleSetVersion  string   `json:"rule_set_version"`
}

// ExportJSONL streams every terminally verified interaction to w, one JSON
// object per line. Records still awaiting review are excluded. Pages are
// fetched in insertion order so the export is stable across runs when the
// dataset is quiescent.
func (s *StatsService) ExportJSONL(ctx context.Context, w io.Writer) error {
	tr := otel.Tracer("services/StatsService")
	ctx, span := tr.Start(ctx, "ExportJSONL")
	defer span.End()

	enc := json.NewEncoder(w)
	const pageSize = 500
	for offset := 0; ; offset += pageSize {
		var page []domain.Interaction
		err := s.DB.WithContext(ctx).
			Where("state = ?", lifecycle.StateVerified).
			Order("created_at asc").
			Offset(offset).
			Limit(pageSize).
			Find(&page).Error
		if err != nil {
			return storeErr(err)
		}
		for i := range page {
			in := &page[i]
			rec := exportRecord{
				ID:              in.ID,
				Instructions:    in.Instructions,
				Input:           in.Input,
				Output:          in.Output,
				Compliant:       in.Compliant,
				RulesViolated:   in.RulesViolated,
				SchemaViolation: in.SchemaViolation,
				Verifier:        string(in.Verifier),
				RuleSetVersion:  in.RuleSetVersion,
			}
			if in.Action != nil {
				rec.Action = string(*in.Action)
			}
			if rec.RulesViolated == nil {
				rec.RulesViolated = []string{}
			}
			if err := enc.Encode(rec); err != nil {
				return err
			}
		}
		if len(page) < pageSize {
			return nil
		}
	}
}
