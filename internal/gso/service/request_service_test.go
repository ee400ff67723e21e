package service_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jekmagalaman/gso/internal/gso/entity"
	"github.com/jekmagalaman/gso/internal/gso/repository"
	"github.com/jekmagalaman/gso/internal/gso/service"
	"github.com/jekmagalaman/gso/internal/gso/sse"
	"github.com/jekmagalaman/gso/internal/gso/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	env       *testutil.Env
	svc       *service.RequestService
	unit      *entity.Unit
	director  *entity.User
	head      *entity.User
	worker    *entity.User
	requestor *entity.User
	item      *entity.InventoryItem
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	env := testutil.NewEnv(t)
	unit := testutil.SeedUnit(t, env.DB, "Repair and Maintenance")
	return &fixture{
		env:       env,
		svc:       env.Services.Request,
		unit:      unit,
		director:  testutil.SeedUser(t, env.DB, "director", "Maria", "Santos", entity.RoleDirector, ""),
		head:      testutil.SeedUser(t, env.DB, "head", "Pedro", "Reyes", entity.RoleUnitHead, unit.ID),
		worker:    testutil.SeedUser(t, env.DB, "worker", "Juan", "Cruz", entity.RolePersonnel, unit.ID),
		requestor: testutil.SeedUser(t, env.DB, "requestor", "Ana", "Lopez", entity.RoleRequestor, ""),
		item:      testutil.SeedItem(t, env.DB, unit.ID, "Paint", 10, "150.50"),
	}
}

func (f *fixture) create(t *testing.T, description string, emergency bool) *entity.ServiceRequest {
	t.Helper()
	req, err := f.svc.Create(context.Background(), testutil.ActorOf(f.requestor), service.CreateRequestInput{
		UnitID:       f.unit.ID,
		ActivityName: "Repaint office",
		Description:  description,
		IsEmergency:  emergency,
	})
	require.NoError(t, err)
	return req
}

func (f *fixture) approved(t *testing.T) *entity.ServiceRequest {
	t.Helper()
	req := f.create(t, "Repaint the registrar office", false)
	_, err := f.svc.Approve(context.Background(), testutil.ActorOf(f.director), req.ID)
	require.NoError(t, err)
	return req
}

func (f *fixture) assign(t *testing.T, id string, qty int) {
	t.Helper()
	input := service.AssignInput{PersonnelIDs: []string{f.worker.ID}}
	if qty > 0 {
		input.Materials = []service.MaterialLine{{ItemID: f.item.ID, Quantity: qty}}
	}
	_, err := f.svc.Assign(context.Background(), testutil.ActorOf(f.head), id, input)
	require.NoError(t, err)
}

func (f *fixture) stock(t *testing.T) int {
	t.Helper()
	item, err := f.env.Repos.Inventory.FindByID(context.Background(), f.item.ID)
	require.NoError(t, err)
	return item.Quantity
}

func (f *fixture) status(t *testing.T, id string) *entity.ServiceRequest {
	t.Helper()
	req, err := f.env.Repos.Request.FindByID(context.Background(), id)
	require.NoError(t, err)
	return req
}

func (f *fixture) warCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.env.DB.Model(&entity.WorkAccomplishmentReport{}).Count(&n).Error)
	return n
}

func TestRequestLifecycle_EndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := f.create(t, "Repaint the registrar office", false)
	assert.Equal(t, entity.RequestStatusPending, req.Status)
	assert.Nil(t, req.CompletedAt)

	_, err := f.svc.Approve(ctx, testutil.ActorOf(f.director), req.ID)
	require.NoError(t, err)

	f.assign(t, req.ID, 3)
	assert.Equal(t, 7, f.stock(t))

	started, err := f.svc.Start(ctx, testutil.ActorOf(f.worker), req.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.RequestStatusInProgress, started.Status)
	assert.NotNil(t, started.StartedAt)
	assert.Nil(t, started.CompletedAt)

	_, err = f.svc.AddTaskReport(ctx, testutil.ActorOf(f.worker), req.ID, "Scraped and primed the walls")
	require.NoError(t, err)

	_, err = f.svc.SubmitForReview(ctx, testutil.ActorOf(f.worker), req.ID, "")
	require.NoError(t, err)
	assert.Nil(t, f.status(t, req.ID).CompletedAt)

	result, err := f.svc.ApproveCompletion(ctx, testutil.ActorOf(f.head), req.ID)
	require.NoError(t, err)
	require.NotNil(t, result.WAR)

	assert.Equal(t, entity.RequestStatusCompleted, result.Request.Status)
	require.NotNil(t, result.Request.CompletedAt)
	assert.Equal(t, 7, f.stock(t))

	war := result.WAR
	assert.Equal(t, req.ID, war.RequestID)
	assert.Equal(t, "Repaint the registrar office", war.Description)
	assert.Equal(t, "Repaint office", war.ActivityName)
	assert.Equal(t, "Ana Lopez", war.RequestingOfficeName)
	assert.Equal(t, []string{"Juan Cruz"}, []string(war.PersonnelNames))
	assert.Equal(t, "451.5", war.MaterialCost.String())
	assert.True(t, war.TotalCost.Equal(war.MaterialCost))
	assert.Equal(t, "WAR-"+result.Request.CompletedAt.UTC().Format("200601")+"-0001", war.ControlNumber)
	assert.Equal(t, 0, f.env.Generator.Calls())
	assert.Equal(t, int64(1), f.warCount(t))
}

func TestApproveCompletion_SecondCallCreatesNoWAR(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := f.approved(t)
	f.assign(t, req.ID, 0)
	_, err := f.svc.Start(ctx, testutil.ActorOf(f.worker), req.ID)
	require.NoError(t, err)
	_, err = f.svc.SubmitForReview(ctx, testutil.ActorOf(f.worker), req.ID, "")
	require.NoError(t, err)
	_, err = f.svc.ApproveCompletion(ctx, testutil.ActorOf(f.head), req.ID)
	require.NoError(t, err)

	_, err = f.svc.ApproveCompletion(ctx, testutil.ActorOf(f.head), req.ID)
	var illegal *service.IllegalTransitionError
	require.ErrorAs(t, err, &illegal)
	assert.Equal(t, entity.RequestStatusCompleted, illegal.From)
	assert.Equal(t, int64(1), f.warCount(t))
}

func TestApproveCompletion_GeneratesDescriptionWhenMissing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.env.Generator.Reply = "Repainted the office walls."

	req := f.approved(t)
	// an empty description can only come from an edited record
	require.NoError(t, f.env.DB.Model(&entity.ServiceRequest{}).Where("id = ?", req.ID).Update("description", "").Error)
	f.assign(t, req.ID, 0)
	_, err := f.svc.Start(ctx, testutil.ActorOf(f.worker), req.ID)
	require.NoError(t, err)
	_, err = f.svc.AddTaskReport(ctx, testutil.ActorOf(f.worker), req.ID, "Applied two coats")
	require.NoError(t, err)
	_, err = f.svc.SubmitForReview(ctx, testutil.ActorOf(f.worker), req.ID, "")
	require.NoError(t, err)

	result, err := f.svc.ApproveCompletion(ctx, testutil.ActorOf(f.head), req.ID)
	require.NoError(t, err)
	assert.Equal(t, "Repainted the office walls.", result.WAR.Description)
	require.Equal(t, 1, f.env.Generator.Calls())
	assert.Contains(t, f.env.Generator.Prompts()[0], "- Applied two coats")
}

func TestRejectCompletion_ReturnsToInProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := f.approved(t)
	f.assign(t, req.ID, 0)
	_, err := f.svc.Start(ctx, testutil.ActorOf(f.worker), req.ID)
	require.NoError(t, err)
	_, err = f.svc.SubmitForReview(ctx, testutil.ActorOf(f.worker), req.ID, "")
	require.NoError(t, err)

	rejected, err := f.svc.RejectCompletion(ctx, testutil.ActorOf(f.head), req.ID, "Second coat missing")
	require.NoError(t, err)
	assert.Equal(t, entity.RequestStatusInProgress, rejected.Status)
	assert.Nil(t, rejected.CompletedAt)
	assert.Equal(t, int64(0), f.warCount(t))

	history, err := f.svc.History(ctx, testutil.ActorOf(f.head), req.ID)
	require.NoError(t, err)
	last := history[len(history)-1]
	assert.Equal(t, entity.RequestStatusDoneForReview, last.FromStatus)
	assert.Equal(t, entity.RequestStatusInProgress, last.ToStatus)
	assert.Equal(t, "Second coat missing", last.Content)
}

func TestIllegalTransitions_LeaveStatusUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	var illegal *service.IllegalTransitionError

	req := f.create(t, "Fix the door", false)
	f.assign(t, req.ID, 0)

	_, err := f.svc.Start(ctx, testutil.ActorOf(f.worker), req.ID)
	require.ErrorAs(t, err, &illegal)
	assert.Equal(t, entity.RequestStatusPending, illegal.From)
	assert.Equal(t, entity.RequestStatusPending, f.status(t, req.ID).Status)

	_, err = f.svc.SubmitForReview(ctx, testutil.ActorOf(f.worker), req.ID, "")
	require.ErrorAs(t, err, &illegal)

	_, err = f.svc.ApproveCompletion(ctx, testutil.ActorOf(f.head), req.ID)
	require.ErrorAs(t, err, &illegal)

	_, err = f.svc.Approve(ctx, testutil.ActorOf(f.director), req.ID)
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, testutil.ActorOf(f.director), req.ID)
	require.ErrorAs(t, err, &illegal)
	assert.Equal(t, entity.RequestStatusApproved, illegal.From)
	assert.Equal(t, entity.RequestStatusApproved, f.status(t, req.ID).Status)
}

func TestAuthorization_RoleAndScope(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	var authz *service.AuthorizationError

	other := testutil.SeedUnit(t, f.env.DB, "Motorpool")
	otherHead := testutil.SeedUser(t, f.env.DB, "otherhead", "Leo", "Garcia", entity.RoleUnitHead, other.ID)
	idle := testutil.SeedUser(t, f.env.DB, "idle", "Rosa", "Diaz", entity.RolePersonnel, f.unit.ID)
	stranger := testutil.SeedUser(t, f.env.DB, "stranger", "Ben", "Tan", entity.RoleRequestor, "")

	req := f.create(t, "Fix the aircon", false)

	_, err := f.svc.Approve(ctx, testutil.ActorOf(f.head), req.ID)
	require.ErrorAs(t, err, &authz)

	_, err = f.svc.Assign(ctx, testutil.ActorOf(otherHead), req.ID, service.AssignInput{PersonnelIDs: []string{f.worker.ID}})
	require.ErrorAs(t, err, &authz)

	_, err = f.svc.Cancel(ctx, testutil.ActorOf(stranger), req.ID, "")
	require.ErrorAs(t, err, &authz)

	_, err = f.svc.Approve(ctx, testutil.ActorOf(f.director), req.ID)
	require.NoError(t, err)
	f.assign(t, req.ID, 0)

	_, err = f.svc.Start(ctx, testutil.ActorOf(idle), req.ID)
	require.ErrorAs(t, err, &authz)

	_, err = f.svc.Get(ctx, testutil.ActorOf(stranger), req.ID)
	require.ErrorAs(t, err, &authz)

	assert.Equal(t, entity.RequestStatusApproved, f.status(t, req.ID).Status)
}

func TestAssign_RejectsWrongPersonnel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other := testutil.SeedUnit(t, f.env.DB, "Motorpool")
	outsider := testutil.SeedUser(t, f.env.DB, "outsider", "Leo", "Garcia", entity.RolePersonnel, other.ID)

	req := f.approved(t)

	var validation *service.ValidationError
	_, err := f.svc.Assign(ctx, testutil.ActorOf(f.head), req.ID, service.AssignInput{PersonnelIDs: []string{outsider.ID}})
	require.ErrorAs(t, err, &validation)

	_, err = f.svc.Assign(ctx, testutil.ActorOf(f.head), req.ID, service.AssignInput{PersonnelIDs: []string{f.head.ID}})
	require.ErrorAs(t, err, &validation)

	var missing *service.NotFoundError
	_, err = f.svc.Assign(ctx, testutil.ActorOf(f.head), req.ID, service.AssignInput{PersonnelIDs: []string{"nobody"}})
	require.ErrorAs(t, err, &missing)

	_, err = f.svc.Assign(ctx, testutil.ActorOf(f.head), req.ID, service.AssignInput{
		Materials: []service.MaterialLine{{ItemID: f.item.ID, Quantity: 0}},
	})
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, 10, f.stock(t))
}

func TestAssign_InsufficientStockRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := f.approved(t)
	_, err := f.svc.Assign(ctx, testutil.ActorOf(f.head), req.ID, service.AssignInput{
		PersonnelIDs: []string{f.worker.ID},
		Materials:    []service.MaterialLine{{ItemID: f.item.ID, Quantity: 11}},
	})

	var stock *service.InsufficientStockError
	require.ErrorAs(t, err, &stock)
	assert.Equal(t, 11, stock.Requested)
	assert.Equal(t, 10, stock.Available)
	assert.True(t, service.IsInsufficientStock(err))

	assert.Equal(t, 10, f.stock(t))
	assigned, err := f.env.Repos.Request.IsAssigned(ctx, req.ID, f.worker.ID)
	require.NoError(t, err)
	assert.False(t, assigned)
	assert.Equal(t, entity.RequestStatusApproved, f.status(t, req.ID).Status)
}

func TestAssign_ReplacesReservations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := f.approved(t)
	f.assign(t, req.ID, 3)
	assert.Equal(t, 7, f.stock(t))

	_, err := f.svc.Assign(ctx, testutil.ActorOf(f.head), req.ID, service.AssignInput{
		PersonnelIDs: []string{f.worker.ID},
		Materials: []service.MaterialLine{
			{ItemID: f.item.ID, Quantity: 4},
			{ItemID: f.item.ID, Quantity: 1},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 5, f.stock(t))

	materials, err := f.env.Repos.Request.ListMaterials(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, materials, 1)
	assert.Equal(t, 5, materials[0].Quantity)

	// reassigning with 9 only succeeds because the 5 are returned first
	f.assign(t, req.ID, 9)
	assert.Equal(t, 1, f.stock(t))
}

func TestAssign_ConcurrentReservationsNeverOversell(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.approved(t)
	second := f.approved(t)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []string{first.ID, second.ID} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = f.svc.Assign(ctx, testutil.ActorOf(f.head), id, service.AssignInput{
				PersonnelIDs: []string{f.worker.ID},
				Materials:    []service.MaterialLine{{ItemID: f.item.ID, Quantity: 7}},
			})
		}(i, id)
	}
	wg.Wait()

	failures := 0
	for _, err := range errs {
		if err != nil {
			require.True(t, service.IsInsufficientStock(err), "unexpected error: %v", err)
			failures++
		}
	}
	assert.Equal(t, 1, failures)
	assert.Equal(t, 3, f.stock(t))
}

func TestCancel_ReleasesReservationsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := f.approved(t)
	f.assign(t, req.ID, 4)
	assert.Equal(t, 6, f.stock(t))

	cancelled, err := f.svc.Cancel(ctx, testutil.ActorOf(f.requestor), req.ID, "No longer needed")
	require.NoError(t, err)
	assert.Equal(t, entity.RequestStatusCancelled, cancelled.Status)
	assert.Equal(t, "No longer needed", cancelled.CancelReason)
	assert.Equal(t, 10, f.stock(t))

	_, err = f.svc.Cancel(ctx, testutil.ActorOf(f.requestor), req.ID, "again")
	var illegal *service.IllegalTransitionError
	require.ErrorAs(t, err, &illegal)
	assert.Equal(t, entity.RequestStatusCancelled, illegal.From)
	assert.Equal(t, 10, f.stock(t))

	txs, err := f.env.Services.Inventory.Transactions(ctx, testutil.ActorOf(f.head), f.item.ID)
	require.NoError(t, err)
	sum := 0
	for _, tx := range txs {
		sum += tx.Quantity
	}
	assert.Equal(t, 0, sum)
}

func TestCancel_InProgressIsIllegal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := f.approved(t)
	f.assign(t, req.ID, 2)
	_, err := f.svc.Start(ctx, testutil.ActorOf(f.worker), req.ID)
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, testutil.ActorOf(f.requestor), req.ID, "")
	var illegal *service.IllegalTransitionError
	require.ErrorAs(t, err, &illegal)
	assert.Equal(t, 8, f.stock(t))
}

func TestAddTaskReport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.approved(t)
	f.assign(t, req.ID, 0)

	var validation *service.ValidationError
	_, err := f.svc.AddTaskReport(ctx, testutil.ActorOf(f.worker), req.ID, "   ")
	require.ErrorAs(t, err, &validation)

	_, err = f.svc.AddTaskReport(ctx, testutil.ActorOf(f.worker), req.ID, "Bought supplies")
	require.NoError(t, err)

	reports, err := f.svc.ListReports(ctx, testutil.ActorOf(f.requestor), req.ID)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "Bought supplies", reports[0].ReportText)

	_, err = f.svc.Cancel(ctx, testutil.ActorOf(f.requestor), req.ID, "")
	require.NoError(t, err)
	_, err = f.svc.AddTaskReport(ctx, testutil.ActorOf(f.worker), req.ID, "Too late")
	var illegal *service.IllegalTransitionError
	require.ErrorAs(t, err, &illegal)
}

func TestSubmitForReview_SelectsIndicator(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ind := testutil.SeedIndicator(t, f.env.DB, f.unit.ID, "SI-1", "Repairs completed on time")

	req := f.approved(t)
	f.assign(t, req.ID, 0)
	_, err := f.svc.Start(ctx, testutil.ActorOf(f.worker), req.ID)
	require.NoError(t, err)

	submitted, err := f.svc.SubmitForReview(ctx, testutil.ActorOf(f.worker), req.ID, ind.ID)
	require.NoError(t, err)
	require.NotNil(t, submitted.SelectedIndicatorID)
	assert.Equal(t, ind.ID, *submitted.SelectedIndicatorID)

	result, err := f.svc.ApproveCompletion(ctx, testutil.ActorOf(f.head), req.ID)
	require.NoError(t, err)
	require.NotNil(t, result.WAR.IndicatorID)
	assert.Equal(t, ind.ID, *result.WAR.IndicatorID)
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := testutil.ActorOf(f.requestor)
	var validation *service.ValidationError

	_, err := f.svc.Create(ctx, actor, service.CreateRequestInput{UnitID: f.unit.ID, Description: "  "})
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "description", validation.Field)

	start := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	end := start.Add(-time.Hour)
	_, err = f.svc.Create(ctx, actor, service.CreateRequestInput{
		UnitID: f.unit.ID, Description: "Fix lights", ScheduleStart: &start, ScheduleEnd: &end,
	})
	require.ErrorAs(t, err, &validation)

	var missing *service.NotFoundError
	_, err = f.svc.Create(ctx, actor, service.CreateRequestInput{UnitID: "nope", Description: "Fix lights"})
	require.ErrorAs(t, err, &missing)
}

func TestCreate_NotifiesDirector(t *testing.T) {
	f := newFixture(t)
	req := f.create(t, "Fix the gate", true)

	items, err := f.env.Services.Notification.List(context.Background(), testutil.ActorOf(f.director), true)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.NotNil(t, items[0].RequestID)
	assert.Equal(t, req.ID, *items[0].RequestID)
	assert.Contains(t, items[0].Message, "EMERGENCY")
}

func TestListRequests_OrderAndScope(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r1 := f.create(t, "Fix the roof", false)
	r2 := f.create(t, "Flooded hallway", true)
	r3 := f.create(t, "Replace bulbs", false)

	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	for i, id := range []string{r1.ID, r2.ID, r3.ID} {
		require.NoError(t, f.env.DB.Model(&entity.ServiceRequest{}).Where("id = ?", id).
			Update("created_at", base.Add(time.Duration(i)*time.Hour)).Error)
	}

	ids := func(items []entity.ServiceRequest) []string {
		out := make([]string, len(items))
		for i := range items {
			out[i] = items[i].ID
		}
		return out
	}

	items, total, err := f.svc.ListRequests(ctx, testutil.ActorOf(f.director), service.RequestFilter{Order: repository.OrderEmergencyFirst})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Equal(t, []string{r2.ID, r3.ID, r1.ID}, ids(items))

	items, _, err = f.svc.ListRequests(ctx, testutil.ActorOf(f.director), service.RequestFilter{Order: repository.OrderNewest})
	require.NoError(t, err)
	assert.Equal(t, []string{r3.ID, r2.ID, r1.ID}, ids(items))

	items, _, err = f.svc.ListRequests(ctx, testutil.ActorOf(f.director), service.RequestFilter{Order: repository.OrderNewest, Query: "BULBS"})
	require.NoError(t, err)
	assert.Equal(t, []string{r3.ID}, ids(items))

	_, _, err = f.svc.ListRequests(ctx, testutil.ActorOf(f.director), service.RequestFilter{})
	var validation *service.ValidationError
	require.ErrorAs(t, err, &validation)

	f.assign(t, r1.ID, 0)
	items, _, err = f.svc.ListRequests(ctx, testutil.ActorOf(f.worker), service.RequestFilter{Order: repository.OrderNewest})
	require.NoError(t, err)
	assert.Equal(t, []string{r1.ID}, ids(items))

	stranger := testutil.SeedUser(t, f.env.DB, "stranger", "Ben", "Tan", entity.RoleRequestor, "")
	items, _, err = f.svc.ListRequests(ctx, testutil.ActorOf(stranger), service.RequestFilter{Order: repository.OrderNewest})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestUploadAttachment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.create(t, "Fix the sink", false)

	updated, err := f.svc.UploadAttachment(ctx, testutil.ActorOf(f.requestor), req.ID, "Photo.JPG",
		strings.NewReader("image"), 5, "image/jpeg")
	require.NoError(t, err)
	assert.Contains(t, updated.AttachmentPath, "requests/"+req.ID+"/")
	assert.Equal(t, []string{updated.AttachmentPath}, f.env.Store.Keys())

	rc, name, err := f.svc.OpenAttachment(ctx, testutil.ActorOf(f.director), req.ID)
	require.NoError(t, err)
	defer rc.Close()
	assert.Contains(t, name, ".jpg")

	_, err = f.svc.UploadAttachment(ctx, testutil.ActorOf(f.director), req.ID, "x.pdf", strings.NewReader("x"), 1, "application/pdf")
	var authz *service.AuthorizationError
	require.ErrorAs(t, err, &authz)
}

func TestDashboard_CountsByStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, "One", false)
	f.approved(t)

	d, err := f.svc.Dashboard(ctx, testutil.ActorOf(f.head))
	require.NoError(t, err)
	assert.Equal(t, int64(2), d.Total)
	assert.Equal(t, int64(1), d.ByStatus[entity.RequestStatusPending])
	assert.Equal(t, int64(1), d.ByStatus[entity.RequestStatusApproved])
	require.NotNil(t, d.Stock)

	d, err = f.svc.Dashboard(ctx, testutil.ActorOf(f.requestor))
	require.NoError(t, err)
	assert.Equal(t, int64(2), d.Total)
	assert.Nil(t, d.Stock)
}

func TestGet_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Get(context.Background(), testutil.ActorOf(f.director), "missing")
	var missing *service.NotFoundError
	require.True(t, errors.As(err, &missing))
}

func (f *fixture) underReview(t *testing.T) *entity.ServiceRequest {
	t.Helper()
	ctx := context.Background()
	req := f.approved(t)
	f.assign(t, req.ID, 0)
	_, err := f.svc.Start(ctx, testutil.ActorOf(f.worker), req.ID)
	require.NoError(t, err)
	_, err = f.svc.SubmitForReview(ctx, testutil.ActorOf(f.worker), req.ID, "")
	require.NoError(t, err)
	return req
}

func TestApproveCompletion_ControlNumbersFollowMonthCounter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	head := testutil.ActorOf(f.head)

	first, err := f.svc.ApproveCompletion(ctx, head, f.underReview(t).ID)
	require.NoError(t, err)
	second, err := f.svc.ApproveCompletion(ctx, head, f.underReview(t).ID)
	require.NoError(t, err)

	prefix := "WAR-" + first.Request.CompletedAt.UTC().Format("200601") + "-"
	assert.Equal(t, prefix+"0001", first.WAR.ControlNumber)
	assert.Equal(t, prefix+"0002", second.WAR.ControlNumber)

	// numbers are never reused once a WAR row disappears
	require.NoError(t, f.env.DB.Where("id = ?", first.WAR.ID).Delete(&entity.WorkAccomplishmentReport{}).Error)
	third, err := f.svc.ApproveCompletion(ctx, head, f.underReview(t).ID)
	require.NoError(t, err)
	assert.Equal(t, prefix+"0003", third.WAR.ControlNumber)
}

func TestApproveCompletion_ConcurrentCompletionsGetDistinctNumbers(t *testing.T) {
	f := newFixture(t)
	head := testutil.ActorOf(f.head)

	const n = 4
	ids := make([]string, n)
	for i := range ids {
		ids[i] = f.underReview(t).ID
	}

	numbers := make([]string, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := f.svc.ApproveCompletion(context.Background(), head, ids[i])
			errs[i] = err
			if err == nil {
				numbers[i] = result.WAR.ControlNumber
			}
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for i := range ids {
		require.NoError(t, errs[i])
		assert.False(t, seen[numbers[i]], "duplicate control number %s", numbers[i])
		seen[numbers[i]] = true
		assert.Equal(t, entity.RequestStatusCompleted, f.status(t, ids[i]).Status)
	}
	assert.Equal(t, int64(n), f.warCount(t))
}

func TestApprove_BroadcastsRequestUpdate(t *testing.T) {
	f := newFixture(t)
	req := f.create(t, "Repaint the registrar office", false)

	watcher := &sse.Client{ID: "w1", UserID: "watcher", Events: make(chan sse.Event, 4)}
	f.env.Hub.Register(watcher)
	defer f.env.Hub.Unregister(watcher.ID)

	_, err := f.svc.Approve(context.Background(), testutil.ActorOf(f.director), req.ID)
	require.NoError(t, err)

	require.Len(t, watcher.Events, 1)
	ev := <-watcher.Events
	assert.Equal(t, sse.EventRequestUpdate, ev.EventType)
	assert.JSONEq(t, `{"request_id":"`+req.ID+`","unit_id":"`+f.unit.ID+`","status":"Approved"}`, ev.Data)
}
