package assignment

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Таблица по умолчанию: ≥80 Distinction, ≥65 Merit, ≥50 Pass, иначе Fail.
const (
	DefaultThresholds = "Distinction:80,Merit:65,Pass:50"
	DefaultFallback   = "Fail"
)

type threshold struct {
	label string
	min   float64
}

// BadgeTable переводит оценку в бейдж. Пороги идут по убыванию, поэтому отображение монотонно.
type BadgeTable struct {
	levels   []threshold
	fallback string
}

// ParseThresholds разбирает строку вида "Distinction:80,Merit:65,Pass:50".
func ParseThresholds(def, fallback string) (*BadgeTable, error) {
	fallback = strings.TrimSpace(fallback)
	if fallback == "" {
		fallback = DefaultFallback
	}
	t := &BadgeTable{fallback: fallback}
	seen := map[string]bool{}
	for _, part := range strings.Split(def, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		label, val, ok := strings.Cut(part, ":")
		label = strings.TrimSpace(label)
		if !ok || label == "" {
			return nil, fmt.Errorf("badge threshold %q: want Label:min", part)
		}
		min, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return nil, fmt.Errorf("badge threshold %q: %w", part, err)
		}
		if min < 0 || min > 100 {
			return nil, fmt.Errorf("badge threshold %q: min must be within 0..100", part)
		}
		if label == fallback {
			return nil, fmt.Errorf("badge threshold %q: label clashes with fallback", label)
		}
		if seen[label] {
			return nil, fmt.Errorf("badge threshold %q: duplicate label", label)
		}
		seen[label] = true
		t.levels = append(t.levels, threshold{label: label, min: min})
	}
	sort.SliceStable(t.levels, func(i, j int) bool { return t.levels[i].min > t.levels[j].min })
	for i := 1; i < len(t.levels); i++ {
		if t.levels[i].min == t.levels[i-1].min {
			return nil, fmt.Errorf("badge thresholds %q and %q share min %g", t.levels[i-1].label, t.levels[i].label, t.levels[i].min)
		}
	}
	return t, nil
}

// MustDefaultTable: таблица по умолчанию, для тестов и CLI.
func MustDefaultTable() *BadgeTable {
	t, err := ParseThresholds(DefaultThresholds, DefaultFallback)
	if err != nil {
		panic(err)
	}
	return t
}

// GradeToBadge возвращает первый порог, который оценка достигает.
func (t *BadgeTable) GradeToBadge(grade float64) string {
	for _, l := range t.levels {
		if grade >= l.min {
			return l.label
		}
	}
	return t.fallback
}

// Rank возвращает ранг бейджа: 0 у fallback, дальше по возрастанию порога.
func (t *BadgeTable) Rank(label string) int {
	for i, l := range t.levels {
		if l.label == label {
			return len(t.levels) - i
		}
	}
	return 0
}
