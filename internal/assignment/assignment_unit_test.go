package assignment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spok95/course-tracker/internal/apperr"
	"github.com/Spok95/course-tracker/internal/models"
)

func ptr(f float64) *float64 { return &f }

func TestDecisionValidate(t *testing.T) {
	ok := []Decision{
		{Status: models.Approved, Grade: ptr(0)},
		{Status: models.Approved, Grade: ptr(100)},
		{Status: models.Rejected},
		{Status: models.Rejected, Grade: ptr(30)},
	}
	for _, d := range ok {
		assert.NoError(t, d.validate("t"), "%+v", d)
	}

	bad := []Decision{
		{Status: models.Approved},
		{Status: models.Approved, Grade: ptr(-1)},
		{Status: models.Approved, Grade: ptr(100.5)},
		{Status: models.Rejected, Grade: ptr(101)},
		{Status: models.Submitted, Grade: ptr(50)},
		{Status: "maybe"},
	}
	for _, d := range bad {
		err := d.validate("t")
		require.Error(t, err, "%+v", d)
		assert.ErrorIs(t, err, apperr.ErrValidation)
	}
}

func TestSummarize_HidesNonFinalGrades(t *testing.T) {
	list := []models.Assignment{
		{Week: 1, Status: models.Approved, Grade: ptr(72)},
		{Week: 2, Status: models.Rejected, Grade: ptr(20)},
		{Week: 3, Status: models.Submitted},
	}
	got := summarize(list, 4, MustDefaultTable())
	require.Len(t, got, 4)

	assert.Equal(t, models.Approved, got[0].Status)
	require.NotNil(t, got[0].Grade)
	assert.Equal(t, 72.0, *got[0].Grade)
	assert.Equal(t, "Merit", got[0].Badge)

	assert.Equal(t, models.Rejected, got[1].Status)
	assert.Nil(t, got[1].Grade)
	assert.Empty(t, got[1].Badge)

	assert.Equal(t, models.Submitted, got[2].Status)
	assert.Equal(t, models.AssignmentStatus(""), got[3].Status)
	assert.Equal(t, 4, got[3].Week)
}

func TestCleanName(t *testing.T) {
	assert.Equal(t, "essay.pdf", cleanName("essay.pdf"))
	assert.Equal(t, "essay.pdf", cleanName("../../etc/essay.pdf"))
	assert.Equal(t, "report.docx", cleanName(`C:\Users\me\report.docx`))
	assert.Equal(t, "", cleanName("  "))
	assert.Equal(t, "", cleanName(".."))
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/pdf", contentType("A.PDF"))
	assert.Equal(t, "application/octet-stream", contentType("noext"))
}
