package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jekmagalaman/gso/internal/gso/entity"
	"github.com/jekmagalaman/gso/internal/gso/repository"
	"github.com/jekmagalaman/gso/internal/gso/service"
	"github.com/jekmagalaman/gso/internal/gso/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reportFixture struct {
	env       *testutil.Env
	unit      *entity.Unit
	head      *entity.User
	gso       *entity.User
	worker    *entity.User
	indicator *entity.SuccessIndicator
	seq       int
}

func newReportFixture(t *testing.T) *reportFixture {
	t.Helper()
	env := testutil.NewEnv(t)
	unit := testutil.SeedUnit(t, env.DB, "Janitorial")
	return &reportFixture{
		env:       env,
		unit:      unit,
		head:      testutil.SeedUser(t, env.DB, "head", "Pedro", "Reyes", entity.RoleUnitHead, unit.ID),
		gso:       testutil.SeedUser(t, env.DB, "gso", "Gina", "Sol", entity.RoleGSO, ""),
		worker:    testutil.SeedUser(t, env.DB, "jcruz", "Juan", "Cruz", entity.RolePersonnel, unit.ID),
		indicator: testutil.SeedIndicator(t, env.DB, unit.ID, "SI-1", "Cleaned facilities on schedule"),
	}
}

// war inserts a WAR of the worker started on the given day of March 2026.
func (f *reportFixture) war(t *testing.T, description string, day int, indicator *entity.SuccessIndicator) *entity.WorkAccomplishmentReport {
	t.Helper()
	f.seq++
	started := time.Date(2026, 3, day, 9, 0, 0, 0, time.UTC)
	w := &entity.WorkAccomplishmentReport{
		ControlNumber:        fmt.Sprintf("WAR-202603-%04d", f.seq),
		RequestID:            repository.NewID(),
		UnitID:               f.unit.ID,
		RequestingOfficeName: "Registrar",
		PersonnelNames:       []string{"Juan Cruz"},
		ActivityName:         "Cleaning",
		Description:          description,
		Status:               entity.RequestStatusCompleted,
		DateStarted:          started,
		DateCompleted:        started.Add(4 * time.Hour),
		MaterialCost:         decimal.Zero,
		LaborCost:            decimal.Zero,
		TotalCost:            decimal.Zero,
	}
	if indicator != nil {
		w.IndicatorID = &indicator.ID
	}
	require.NoError(t, f.env.Repos.WAR.Create(context.Background(), w, []string{f.worker.ID}))
	return w
}

// admin acts as the GSO office, which owns WAR and IPMT reports.
func (f *reportFixture) admin() service.Actor {
	return testutil.ActorOf(f.gso)
}

func (f *reportFixture) preview(t *testing.T, regenerate bool) service.IPMTRow {
	t.Helper()
	p, err := f.env.Services.IPMT.Preview(context.Background(), f.admin(), service.PreviewInput{
		UnitID:     f.unit.ID,
		Year:       2026,
		Month:      3,
		Personnel:  []string{"Juan Cruz"},
		Regenerate: regenerate,
	})
	require.NoError(t, err)
	require.Len(t, p.Tables, 1)
	require.Len(t, p.Tables[0].Rows, 1)
	assert.Equal(t, "2026-03", p.Month)
	return p.Tables[0].Rows[0]
}

func TestIPMTPreview_SingleWARIsUsedVerbatim(t *testing.T) {
	f := newReportFixture(t)
	w := f.war(t, "Cleaned the main lobby.", 5, f.indicator)

	row := f.preview(t, false)
	assert.Equal(t, "Cleaned the main lobby.", row.Accomplishment)
	assert.Equal(t, entity.RemarkComplied, row.Remarks)
	assert.Equal(t, []string{w.ID}, row.WARIDs)
	assert.False(t, row.Saved)
	assert.Equal(t, 0, f.env.Generator.Calls())
}

func TestIPMTPreview_MultipleWARsMakeOneCall(t *testing.T) {
	f := newReportFixture(t)
	f.env.Generator.Reply = "Maintained cleanliness of campus facilities."
	f.war(t, "Cleaned the main lobby.", 5, f.indicator)
	f.war(t, "Sanitized the clinic.", 12, f.indicator)
	// other months and indicators stay out
	f.war(t, "Cleaned the gym.", 1, nil)
	other := f.war(t, "Cleaned the library.", 20, f.indicator)
	require.NoError(t, f.env.DB.Model(&entity.WorkAccomplishmentReport{}).Where("id = ?", other.ID).
		Update("date_started", time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)).Error)

	row := f.preview(t, false)
	assert.Equal(t, "Maintained cleanliness of campus facilities.", row.Accomplishment)
	assert.Len(t, row.WARIDs, 2)

	require.Equal(t, 1, f.env.Generator.Calls())
	prompt := f.env.Generator.Prompts()[0]
	assert.Contains(t, prompt, "'SI-1'")
	assert.Contains(t, prompt, "- Cleaned the main lobby.")
	assert.Contains(t, prompt, "- Sanitized the clinic.")
	assert.NotContains(t, prompt, "gym")
	assert.NotContains(t, prompt, "library")
}

func TestIPMTPreview_NoWARsGivesEmptyRow(t *testing.T) {
	f := newReportFixture(t)
	row := f.preview(t, false)
	assert.Empty(t, row.Accomplishment)
	assert.Empty(t, row.Remarks)
	assert.Empty(t, row.WARIDs)
	assert.Equal(t, 0, f.env.Generator.Calls())
}

func TestIPMTSave_UpsertsAndReusesStoredNarrative(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()
	w1 := f.war(t, "Cleaned the main lobby.", 5, f.indicator)
	w2 := f.war(t, "Sanitized the clinic.", 12, f.indicator)
	svc := f.env.Services.IPMT

	input := service.SaveInput{
		UnitID:    f.unit.ID,
		Year:      2026,
		Month:     3,
		Personnel: f.worker.ID,
		Rows: []service.SaveRowInput{{
			IndicatorID:    f.indicator.ID,
			Accomplishment: "Kept the lobby and clinic clean.",
			WARIDs:         []string{w1.ID, w2.ID, w1.ID},
		}},
	}
	saved, err := svc.Save(ctx, f.admin(), input)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, entity.RemarkComplied, saved[0].Remarks)
	assert.Len(t, saved[0].Reports, 2)

	input.Rows[0].Accomplishment = "Edited narrative."
	input.Rows[0].Remarks = "Partially complied"
	input.Rows[0].WARIDs = []string{w2.ID}
	saved, err = svc.Save(ctx, f.admin(), input)
	require.NoError(t, err)

	var count int64
	require.NoError(t, f.env.DB.Model(&entity.IPMTEntry{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, "Edited narrative.", saved[0].Accomplishment)
	assert.Equal(t, "Partially complied", saved[0].Remarks)
	require.Len(t, saved[0].Reports, 1)
	assert.Equal(t, w2.ID, saved[0].Reports[0].WARID)

	row := f.preview(t, false)
	assert.Equal(t, "Edited narrative.", row.Accomplishment)
	assert.True(t, row.Saved)
	assert.Equal(t, []string{w2.ID}, row.WARIDs)
	assert.Equal(t, 0, f.env.Generator.Calls())

	f.env.Generator.Reply = "Fresh summary."
	row = f.preview(t, true)
	assert.Equal(t, "Fresh summary.", row.Accomplishment)
	assert.Equal(t, 1, f.env.Generator.Calls())

	person, entries, err := svc.Entries(ctx, f.admin(), f.unit.ID, "jcruz", 2026, 3)
	require.NoError(t, err)
	assert.Equal(t, f.worker.ID, person.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, "Edited narrative.", entries[0].Accomplishment)
}

func TestIPMTSave_CreatesIndicatorByCode(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()

	saved, err := f.env.Services.IPMT.Save(ctx, f.admin(), service.SaveInput{
		UnitID:    f.unit.ID,
		Year:      2026,
		Month:     3,
		Personnel: "Juan Cruz",
		Rows: []service.SaveRowInput{{
			IndicatorCode:  "SI-9",
			Description:    "Waste segregated daily",
			Accomplishment: "Segregated waste in all buildings.",
		}},
	})
	require.NoError(t, err)
	require.Len(t, saved, 1)
	require.NotNil(t, saved[0].Indicator)
	assert.Equal(t, "SI-9", saved[0].Indicator.Code)

	ind, err := f.env.Repos.Indicator.FindByCode(ctx, f.unit.ID, "SI-9")
	require.NoError(t, err)
	assert.Equal(t, "Waste segregated daily", ind.Description)
}

func TestIPMTSave_RejectsForeignWARs(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()
	var missing *service.NotFoundError

	_, err := f.env.Services.IPMT.Save(ctx, f.admin(), service.SaveInput{
		UnitID:    f.unit.ID,
		Year:      2026,
		Month:     3,
		Personnel: f.worker.ID,
		Rows:      []service.SaveRowInput{{IndicatorID: f.indicator.ID, WARIDs: []string{"missing"}}},
	})
	require.ErrorAs(t, err, &missing)

	other := testutil.SeedUnit(t, f.env.DB, "Motorpool")
	foreign := testutil.SeedIndicator(t, f.env.DB, other.ID, "SI-7", "Vehicles serviced")
	_, err = f.env.Services.IPMT.Save(ctx, f.admin(), service.SaveInput{
		UnitID:    f.unit.ID,
		Year:      2026,
		Month:     3,
		Personnel: f.worker.ID,
		Rows:      []service.SaveRowInput{{IndicatorID: foreign.ID}},
	})
	var validation *service.ValidationError
	require.ErrorAs(t, err, &validation)
}

func TestReports_UnitHeadIsForbidden(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()
	w := f.war(t, "Cleaned the main lobby.", 5, f.indicator)
	head := testutil.ActorOf(f.head)
	var authz *service.AuthorizationError

	_, err := f.env.Services.WAR.List(ctx, head, service.WARFilter{Year: 2026, Month: 3})
	require.ErrorAs(t, err, &authz)

	labor := decimal.RequireFromString("100")
	_, err = f.env.Services.WAR.Update(ctx, head, w.ID, service.UpdateWARInput{LaborCost: &labor})
	require.ErrorAs(t, err, &authz)

	_, err = f.env.Services.IPMT.Preview(ctx, head, service.PreviewInput{UnitID: f.unit.ID, Year: 2026, Month: 3, Personnel: []string{"Juan Cruz"}})
	require.ErrorAs(t, err, &authz)

	_, err = f.env.Services.IPMT.Save(ctx, head, service.SaveInput{
		UnitID:    f.unit.ID,
		Year:      2026,
		Month:     3,
		Personnel: f.worker.ID,
		Rows:      []service.SaveRowInput{{IndicatorID: f.indicator.ID}},
	})
	require.ErrorAs(t, err, &authz)

	_, _, err = f.env.Services.Export.ExportWAR(ctx, head, service.WARFilter{Year: 2026, Month: 3})
	require.ErrorAs(t, err, &authz)

	var count int64
	require.NoError(t, f.env.DB.Model(&entity.IPMTEntry{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestIPMTRegenerate_RelinksMatchingWARs(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()
	svc := f.env.Services.IPMT

	saved, err := svc.Save(ctx, f.admin(), service.SaveInput{
		UnitID:    f.unit.ID,
		Year:      2026,
		Month:     3,
		Personnel: f.worker.ID,
		Rows:      []service.SaveRowInput{{IndicatorID: f.indicator.ID}},
	})
	require.NoError(t, err)
	assert.Empty(t, saved[0].Remarks)

	w := f.war(t, "Waxed the hallway floors.", 18, f.indicator)
	entry, err := svc.Regenerate(ctx, f.admin(), saved[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "Waxed the hallway floors.", entry.Accomplishment)
	assert.Equal(t, entity.RemarkComplied, entry.Remarks)
	require.Len(t, entry.Reports, 1)
	assert.Equal(t, w.ID, entry.Reports[0].WARID)
}

func TestWARService_ListAndUpdate(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()
	w := f.war(t, "Cleaned the main lobby.", 5, nil)
	svc := f.env.Services.WAR

	items, err := svc.List(ctx, f.admin(), service.WARFilter{Year: 2026, Month: 3, PersonnelID: f.worker.ID})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, entity.FallbackIndicatorCode, items[0].IndicatorCode())

	var validation *service.ValidationError
	_, err = svc.List(ctx, f.admin(), service.WARFilter{Year: 2026, Month: 13})
	require.ErrorAs(t, err, &validation)

	code := "SI-2"
	labor := decimal.RequireFromString("500")
	updated, err := svc.Update(ctx, f.admin(), w.ID, service.UpdateWARInput{IndicatorCode: &code, LaborCost: &labor})
	require.NoError(t, err)
	require.NotNil(t, updated.Indicator)
	assert.Equal(t, "SI-2", updated.IndicatorCode())
	assert.True(t, updated.TotalCost.Equal(labor))

	negative := decimal.NewFromInt(-1)
	_, err = svc.Update(ctx, f.admin(), w.ID, service.UpdateWARInput{LaborCost: &negative})
	require.ErrorAs(t, err, &validation)

	worker := testutil.ActorOf(f.worker)
	var authz *service.AuthorizationError
	_, err = svc.List(ctx, worker, service.WARFilter{})
	require.ErrorAs(t, err, &authz)
}

func TestIPMTRepository_UpsertKeepsOneRowPerKey(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()
	repo := f.env.Repos.IPMT

	first := &entity.IPMTEntry{PersonnelID: f.worker.ID, UnitID: f.unit.ID, Month: "2026-03", IndicatorID: f.indicator.ID, Accomplishment: "First."}
	require.NoError(t, repo.Upsert(ctx, first))

	second := &entity.IPMTEntry{
		ID:             repository.NewID(),
		PersonnelID:    f.worker.ID,
		UnitID:         f.unit.ID,
		Month:          "2026-03",
		IndicatorID:    f.indicator.ID,
		Accomplishment: "Second.",
		Remarks:        entity.RemarkComplied,
	}
	require.NoError(t, repo.Upsert(ctx, second))
	assert.Equal(t, first.ID, second.ID)

	stored, err := repo.FindByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Second.", stored.Accomplishment)
	assert.Equal(t, entity.RemarkComplied, stored.Remarks)

	var count int64
	require.NoError(t, f.env.DB.Model(&entity.IPMTEntry{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
