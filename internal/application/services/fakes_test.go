package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/bhuvesh-solnce/backend/internal/domain/events"
	"github.com/bhuvesh-solnce/backend/internal/domain/models"
)

var errStoreDown = errors.New("store unavailable")

type fakeTx struct {
	calls int
}

func (f *fakeTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.calls++
	return fn(ctx)
}

type enqueued struct {
	Type    events.EventType
	Payload interface{}
}

type fakeEnqueuer struct {
	mu     sync.Mutex
	events []enqueued
	err    error
}

func (f *fakeEnqueuer) EnqueueEvent(ctx context.Context, eventType events.EventType, payload interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, enqueued{Type: eventType, Payload: payload})
	return nil
}

func (f *fakeEnqueuer) types() []events.EventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]events.EventType, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.Type)
	}
	return out
}

type memWorkflows struct {
	items  map[int64]models.WorkflowDefinition
	nextID int64
}

func newMemWorkflows(ws ...models.WorkflowDefinition) *memWorkflows {
	m := &memWorkflows{items: map[int64]models.WorkflowDefinition{}}
	for _, w := range ws {
		m.items[w.ID] = w
		if w.ID > m.nextID {
			m.nextID = w.ID
		}
	}
	return m
}

func (m *memWorkflows) List(ctx context.Context) ([]models.WorkflowDefinition, error) {
	out := make([]models.WorkflowDefinition, 0, len(m.items))
	for _, w := range m.items {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memWorkflows) FindByID(ctx context.Context, id int64) (*models.WorkflowDefinition, error) {
	w, ok := m.items[id]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (m *memWorkflows) Create(ctx context.Context, w *models.WorkflowDefinition) error {
	m.nextID++
	w.ID = m.nextID
	w.UpdatedAt = w.CreatedAt
	m.items[w.ID] = *w
	return nil
}

type memStages struct {
	items  map[int64]models.Stage
	edges  []models.StageDependency
	nextID int64
}

func newMemStages(stages ...models.Stage) *memStages {
	m := &memStages{items: map[int64]models.Stage{}}
	for _, s := range stages {
		s.ApplyDefaults()
		m.items[s.ID] = s
		if s.ID > m.nextID {
			m.nextID = s.ID
		}
	}
	return m
}

func (m *memStages) link(parent, child int64) {
	m.edges = append(m.edges, models.StageDependency{
		ID:            int64(len(m.edges) + 1),
		ParentStageID: parent,
		ChildStageID:  child,
	})
}

func (m *memStages) ListByWorkflow(ctx context.Context, workflowID int64) ([]models.Stage, error) {
	var out []models.Stage
	for _, s := range m.items {
		if s.WorkflowID == workflowID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStages) FindByID(ctx context.Context, id int64) (*models.Stage, error) {
	s, ok := m.items[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *memStages) FindByIDs(ctx context.Context, ids []int64) (map[int64]models.Stage, error) {
	out := map[int64]models.Stage{}
	for _, id := range ids {
		if s, ok := m.items[id]; ok {
			out[id] = s
		}
	}
	return out, nil
}

func (m *memStages) Create(ctx context.Context, st *models.Stage) error {
	m.nextID++
	st.ID = m.nextID
	m.items[st.ID] = *st
	return nil
}

func (m *memStages) Update(ctx context.Context, st *models.Stage) (bool, error) {
	if _, ok := m.items[st.ID]; !ok {
		return false, nil
	}
	m.items[st.ID] = *st
	return true, nil
}

func (m *memStages) ReplaceParents(ctx context.Context, childID int64, parentIDs []int64) error {
	kept := m.edges[:0:0]
	for _, e := range m.edges {
		if e.ChildStageID != childID {
			kept = append(kept, e)
		}
	}
	m.edges = kept
	for _, p := range parentIDs {
		m.link(p, childID)
	}
	return nil
}

func (m *memStages) EdgesForWorkflow(ctx context.Context, workflowID int64) ([]models.StageDependency, error) {
	var out []models.StageDependency
	for _, e := range m.edges {
		if child, ok := m.items[e.ChildStageID]; ok && child.WorkflowID == workflowID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStages) ParentsOf(ctx context.Context, childID int64) ([]models.StageRef, error) {
	var out []models.StageRef
	for _, e := range m.edges {
		if e.ChildStageID != childID {
			continue
		}
		if s, ok := m.items[e.ParentStageID]; ok {
			out = append(out, models.StageRef{ID: s.ID, Name: s.Name})
		}
	}
	return out, nil
}

func (m *memStages) ChildrenOf(ctx context.Context, parentID int64) ([]models.StageRef, error) {
	var out []models.StageRef
	for _, e := range m.edges {
		if e.ParentStageID != parentID {
			continue
		}
		if s, ok := m.items[e.ChildStageID]; ok {
			out = append(out, models.StageRef{ID: s.ID, Name: s.Name})
		}
	}
	return out, nil
}

type memInstances struct {
	items  map[int64]models.Instance
	nextID int64
	// onDelete removes dependent stage data, mirroring the repository
	onDelete func(instanceID int64)
}

func newMemInstances(ins ...models.Instance) *memInstances {
	m := &memInstances{items: map[int64]models.Instance{}}
	for _, in := range ins {
		m.items[in.ID] = in
		if in.ID > m.nextID {
			m.nextID = in.ID
		}
	}
	return m
}

func (m *memInstances) Create(ctx context.Context, in *models.Instance) error {
	m.nextID++
	in.ID = m.nextID
	if in.Status == "" {
		in.Status = models.InstanceInProgress
	}
	m.items[in.ID] = *in
	return nil
}

func (m *memInstances) FindByID(ctx context.Context, id int64) (*models.Instance, error) {
	in, ok := m.items[id]
	if !ok {
		return nil, nil
	}
	return &in, nil
}

func (m *memInstances) FindLatestForEntity(ctx context.Context, entityID int64, entityType string) (*models.Instance, error) {
	var latest *models.Instance
	for _, in := range m.items {
		in := in
		if in.EntityID != entityID || in.EntityType != entityType {
			continue
		}
		if latest == nil || in.ID > latest.ID {
			latest = &in
		}
	}
	return latest, nil
}

func (m *memInstances) FindLatestForEntities(ctx context.Context, entityIDs []int64, entityType string) (map[int64]models.Instance, error) {
	out := map[int64]models.Instance{}
	for _, id := range entityIDs {
		in, _ := m.FindLatestForEntity(ctx, id, entityType)
		if in != nil {
			out[id] = *in
		}
	}
	return out, nil
}

func (m *memInstances) DeleteForEntity(ctx context.Context, entityID int64, entityType string) error {
	for id, in := range m.items {
		if in.EntityID == entityID && in.EntityType == entityType {
			if m.onDelete != nil {
				m.onDelete(id)
			}
			delete(m.items, id)
		}
	}
	return nil
}

type memStageData struct {
	rows      []models.StageDataRow
	nextID    int64
	appendErr error
}

func (m *memStageData) add(row models.StageDataRow) models.StageDataRow {
	m.nextID++
	row.ID = m.nextID
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = row.CreatedAt
	}
	m.rows = append(m.rows, row)
	return row
}

func (m *memStageData) newestFirst(keep func(models.StageDataRow) bool) []models.StageDataRow {
	out := []models.StageDataRow{}
	for _, r := range m.rows {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (m *memStageData) ListByInstance(ctx context.Context, instanceID int64) ([]models.StageDataRow, error) {
	return m.newestFirst(func(r models.StageDataRow) bool { return r.InstanceID == instanceID }), nil
}

func (m *memStageData) ListByInstances(ctx context.Context, instanceIDs []int64) (map[int64][]models.StageDataRow, error) {
	out := map[int64][]models.StageDataRow{}
	for _, id := range instanceIDs {
		rows, _ := m.ListByInstance(ctx, id)
		if len(rows) > 0 {
			out[id] = rows
		}
	}
	return out, nil
}

func (m *memStageData) ListForStages(ctx context.Context, instanceID int64, stageIDs []int64) ([]models.StageDataRow, error) {
	want := map[int64]bool{}
	for _, id := range stageIDs {
		want[id] = true
	}
	return m.newestFirst(func(r models.StageDataRow) bool {
		return r.InstanceID == instanceID && r.StageID != nil && want[*r.StageID]
	}), nil
}

func (m *memStageData) LatestForStage(ctx context.Context, instanceID, stageID int64) (*models.StageDataRow, error) {
	rows, _ := m.ListForStages(ctx, instanceID, []int64{stageID})
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (m *memStageData) Append(ctx context.Context, row *models.StageDataRow) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	stored := m.add(*row)
	row.ID = stored.ID
	row.UpdatedAt = stored.UpdatedAt
	return nil
}

func (m *memStageData) Resolve(ctx context.Context, row *models.StageDataRow) error {
	for i := range m.rows {
		if m.rows[i].ID == row.ID {
			m.rows[i] = *row
			return nil
		}
	}
	return errors.New("row not found")
}

func (m *memStageData) deleteInstance(instanceID int64) {
	kept := m.rows[:0:0]
	for _, r := range m.rows {
		if r.InstanceID != instanceID {
			kept = append(kept, r)
		}
	}
	m.rows = kept
}

type memProjects struct {
	items  map[int64]models.Project
	nextID int64
}

func newMemProjects(ps ...models.Project) *memProjects {
	m := &memProjects{items: map[int64]models.Project{}}
	for _, p := range ps {
		m.items[p.ID] = p
		if p.ID > m.nextID {
			m.nextID = p.ID
		}
	}
	return m
}

func (m *memProjects) Create(ctx context.Context, p *models.Project) error {
	m.nextID++
	p.ID = m.nextID
	m.items[p.ID] = *p
	return nil
}

func (m *memProjects) FindByProjectID(ctx context.Context, projectID string) (*models.Project, error) {
	for _, p := range m.items {
		if p.ProjectID == projectID {
			p := p
			return &p, nil
		}
	}
	return nil, nil
}

func (m *memProjects) List(ctx context.Context, leadStatus string, excluded []string) ([]models.Project, error) {
	out := []models.Project{}
	for _, p := range m.items {
		switch {
		case leadStatus != "" && leadStatus != "exclude":
			if p.LeadStatus == nil || *p.LeadStatus != leadStatus {
				continue
			}
		case len(excluded) > 0:
			if p.LeadStatus != nil && contains(excluded, *p.LeadStatus) {
				continue
			}
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memProjects) UpdateLeadStatus(ctx context.Context, id int64, leadStatus string, at time.Time) error {
	p, ok := m.items[id]
	if !ok {
		return errors.New("project not found")
	}
	p.LeadStatus = &leadStatus
	p.UpdatedAt = at
	m.items[id] = p
	return nil
}

func (m *memProjects) Delete(ctx context.Context, id int64) error {
	delete(m.items, id)
	return nil
}

type memHistory struct {
	entries []models.LeadHistoryEntry
}

func (m *memHistory) Insert(ctx context.Context, e *models.LeadHistoryEntry) error {
	e.ID = int64(len(m.entries) + 1)
	m.entries = append(m.entries, *e)
	return nil
}

func (m *memHistory) ListByProject(ctx context.Context, projectID string) ([]models.LeadHistoryEntry, error) {
	var out []models.LeadHistoryEntry
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].ProjectID == projectID {
			out = append(out, m.entries[i])
		}
	}
	return out, nil
}

func (m *memHistory) DeleteByProject(ctx context.Context, projectID string) error {
	kept := m.entries[:0:0]
	for _, e := range m.entries {
		if e.ProjectID != projectID {
			kept = append(kept, e)
		}
	}
	m.entries = kept
	return nil
}

type memUsers map[int64]models.UserRef

func (m memUsers) FindRefs(ctx context.Context, ids []int64) (map[int64]models.UserRef, error) {
	out := map[int64]models.UserRef{}
	for _, id := range ids {
		if u, ok := m[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func int64p(v int64) *int64 { return &v }

func strp(v string) *string { return &v }

var baseTime = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
