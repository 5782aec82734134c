package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/icledger/internal/domain/intercompany"
	"github.com/erp/icledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func uuidFlag(cmd *cobra.Command, name string) (uuid.UUID, error) {
	raw, _ := cmd.Flags().GetString(name)
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("--%s must be a UUID", name)
	}
	return id, nil
}

func periodFlag(cmd *cobra.Command) (valueobject.Period, error) {
	raw, _ := cmd.Flags().GetString("period")
	p, err := valueobject.ParsePeriod(raw)
	if err != nil {
		return valueobject.Period{}, fmt.Errorf("--period: %w", err)
	}
	return p, nil
}

func dateFlag(cmd *cobra.Command, name string) (time.Time, error) {
	raw, _ := cmd.Flags().GetString(name)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s must be YYYY-MM-DD", name)
	}
	return t, nil
}

// dueDaysFlag is nil unless --due-days was given, so an explicit 0 survives
func dueDaysFlag(cmd *cobra.Command) *int {
	if !cmd.Flags().Changed("due-days") {
		return nil
	}
	days, _ := cmd.Flags().GetInt("due-days")
	return &days
}

// splitPair parses KEY=VALUE
func splitPair(flag, raw string) (string, decimal.Decimal, error) {
	key, value, ok := strings.Cut(raw, "=")
	if !ok || strings.TrimSpace(key) == "" {
		return "", decimal.Zero, fmt.Errorf("--%s %q: expected KEY=AMOUNT", flag, raw)
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return "", decimal.Zero, fmt.Errorf("--%s %q: %w", flag, raw, err)
	}
	return strings.TrimSpace(key), amount, nil
}

// costLines parses repeated --line CATEGORY=AMOUNT flags
func costLines(cmd *cobra.Command) ([]intercompany.LineInput, error) {
	raw, _ := cmd.Flags().GetStringArray("line")
	lines := make([]intercompany.LineInput, 0, len(raw))
	for _, r := range raw {
		category, amount, err := splitPair("line", r)
		if err != nil {
			return nil, err
		}
		lines = append(lines, intercompany.LineInput{Category: category, Amount: amount})
	}
	return lines, nil
}

// weights parses repeated --weight RECIPIENT_ID=WEIGHT flags
func weights(cmd *cobra.Command) ([]intercompany.WeightInput, error) {
	raw, _ := cmd.Flags().GetStringArray("weight")
	out := make([]intercompany.WeightInput, 0, len(raw))
	for _, r := range raw {
		key, weight, err := splitPair("weight", r)
		if err != nil {
			return nil, err
		}
		id, err := uuid.Parse(key)
		if err != nil {
			return nil, fmt.Errorf("--weight %q: recipient must be a UUID", r)
		}
		out = append(out, intercompany.WeightInput{RecipientID: id, Weight: weight})
	}
	return out, nil
}
