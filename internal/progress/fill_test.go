package progress

import (
	"testing"

	"github.com/Spok95/course-tracker/internal/models"
)

func TestFill_DefaultsMissingWeeks(t *testing.T) {
	got := fill(42, 3, []models.ProgressRecord{
		{UserID: 42, Week: 2, Status: models.Unlocked, OverrideByAdmin: true},
	})
	if len(got) != 4 {
		t.Fatalf("ожидали 4 недели, получили %d", len(got))
	}
	want := []models.WeekStatus{models.Unlocked, models.Locked, models.Unlocked, models.Locked}
	for i, r := range got {
		if r.Week != i {
			t.Fatalf("неделя %d на позиции %d", r.Week, i)
		}
		if r.Status != want[i] {
			t.Fatalf("неделя %d: ожидали %s, получили %s", i, want[i], r.Status)
		}
	}
	if !got[2].OverrideByAdmin {
		t.Fatal("флаг override потерян")
	}
}

func TestFill_OrientationNeverLocked(t *testing.T) {
	got := fill(1, 1, []models.ProgressRecord{{UserID: 1, Week: 0, Status: models.Locked}})
	if got[0].Status != models.Unlocked {
		t.Fatalf("неделя 0 не должна быть locked, получили %s", got[0].Status)
	}
}

func TestFill_EmptyStore(t *testing.T) {
	got := fill(7, 6, nil)
	if got[0].Status != models.Unlocked {
		t.Fatal("неделя 0 по умолчанию открыта")
	}
	for _, r := range got[1:] {
		if r.Status != models.Locked {
			t.Fatalf("неделя %d по умолчанию закрыта, получили %s", r.Week, r.Status)
		}
	}
}
