package sync

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/relaycrm/sync-api/internal/models"
	"github.com/relaycrm/sync-api/internal/partner"
	"github.com/relaycrm/sync-api/internal/repository"
)

// Hand-written fakes for the worker's collaborators. Each records calls and
// serves canned data; behavior is overridden per test through the struct
// fields.

type fakeJobs struct {
	mu           sync.Mutex
	jobs         []models.SyncJob
	dequeueErr   error
	rescheduled  []rescheduleCall
	succeeded    []string
	dequeueCalls int
}

type rescheduleCall struct {
	jobID    string
	runAfter time.Time
	cause    string
}

func (f *fakeJobs) Enqueue(ctx context.Context, job models.SyncJob) (models.SyncJob, error) {
	return job, nil
}

func (f *fakeJobs) DequeueEligible(ctx context.Context, limit int, orgID string) ([]models.SyncJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dequeueCalls++
	if f.dequeueErr != nil {
		return nil, f.dequeueErr
	}
	if len(f.jobs) > limit {
		return f.jobs[:limit], nil
	}
	return f.jobs, nil
}

func (f *fakeJobs) Reschedule(ctx context.Context, jobID string, runAfter time.Time, cause string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rescheduled = append(f.rescheduled, rescheduleCall{jobID: jobID, runAfter: runAfter, cause: cause})
	return nil
}

func (f *fakeJobs) MarkSucceeded(ctx context.Context, jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.succeeded = append(f.succeeded, jobID)
	return nil
}

func (f *fakeJobs) QueueStats(ctx context.Context) ([]models.QueueStat, error) {
	return nil, nil
}

type fakeCreds struct {
	cred         models.OrgCredential
	credErr      error
	integration  models.Integration
	integErr     error
	members      []models.OrgMember
	updated      []models.OrgCredential
	disconnected []string
}

func (f *fakeCreds) GetCredential(ctx context.Context, orgID string) (models.OrgCredential, error) {
	if f.credErr != nil {
		return models.OrgCredential{}, f.credErr
	}
	return f.cred, nil
}

func (f *fakeCreds) UpdateTokens(ctx context.Context, orgID, accessToken, refreshToken string, expiresAt time.Time) error {
	f.updated = append(f.updated, models.OrgCredential{
		OrgID:          orgID,
		AccessToken:    accessToken,
		RefreshToken:   refreshToken,
		TokenExpiresAt: expiresAt,
	})
	return nil
}

func (f *fakeCreds) GetIntegration(ctx context.Context, orgID string) (models.Integration, error) {
	if f.integErr != nil {
		return models.Integration{}, f.integErr
	}
	return f.integration, nil
}

func (f *fakeCreds) MarkDisconnected(ctx context.Context, orgID, reason string) error {
	f.disconnected = append(f.disconnected, orgID)
	return nil
}

func (f *fakeCreds) ListMembers(ctx context.Context, orgID string) ([]models.OrgMember, error) {
	return f.members, nil
}

type fakeMappings struct {
	byLocal  map[string]models.ObjectMapping
	byRemote map[string]models.ObjectMapping
	upserted []models.ObjectMapping
}

func newFakeMappings() *fakeMappings {
	return &fakeMappings{
		byLocal:  map[string]models.ObjectMapping{},
		byRemote: map[string]models.ObjectMapping{},
	}
}

func mappingKey(objectType models.ObjectType, id string) string {
	return string(objectType) + "/" + id
}

func (f *fakeMappings) Upsert(ctx context.Context, m models.ObjectMapping) (models.ObjectMapping, error) {
	f.upserted = append(f.upserted, m)
	if m.LocalID != nil {
		f.byLocal[mappingKey(m.ObjectType, *m.LocalID)] = m
	}
	f.byRemote[mappingKey(m.ObjectType, m.RemoteID)] = m
	return m, nil
}

func (f *fakeMappings) GetByRemoteID(ctx context.Context, orgID string, objectType models.ObjectType, remoteID string) (models.ObjectMapping, error) {
	if m, ok := f.byRemote[mappingKey(objectType, remoteID)]; ok {
		return m, nil
	}
	return models.ObjectMapping{}, repository.ErrNotFound
}

func (f *fakeMappings) GetByLocalID(ctx context.Context, orgID string, objectType models.ObjectType, localID string) (models.ObjectMapping, error) {
	if m, ok := f.byLocal[mappingKey(objectType, localID)]; ok {
		return m, nil
	}
	return models.ObjectMapping{}, repository.ErrNotFound
}

type fieldUpdate struct {
	id     string
	fields map[string]string
}

type fakeEntities struct {
	contacts        map[string]models.Contact
	contactsByEmail map[string]models.Contact
	deals           map[string]models.Deal
	tasks           map[string]models.Task
	notes           map[string]models.Note
	quotes          map[string]models.Quote
	lineItems       map[string]models.LineItem
	customObjects   map[string]models.CustomObject

	createdContacts []models.Contact
	createdTasks    []models.Task
	contactUpdates  []fieldUpdate
	dealUpdates     []fieldUpdate
	taskUpdates     []fieldUpdate
	nextID          int
}

func newFakeEntities() *fakeEntities {
	return &fakeEntities{
		contacts:        map[string]models.Contact{},
		contactsByEmail: map[string]models.Contact{},
		deals:           map[string]models.Deal{},
		tasks:           map[string]models.Task{},
		notes:           map[string]models.Note{},
		quotes:          map[string]models.Quote{},
		lineItems:       map[string]models.LineItem{},
		customObjects:   map[string]models.CustomObject{},
	}
}

func (f *fakeEntities) genID() string {
	f.nextID++
	return "local-" + string(rune('a'+f.nextID-1))
}

func (f *fakeEntities) GetContact(ctx context.Context, orgID, id string) (models.Contact, error) {
	if c, ok := f.contacts[id]; ok {
		return c, nil
	}
	return models.Contact{}, repository.ErrNotFound
}

func (f *fakeEntities) GetContactByEmail(ctx context.Context, orgID, email string) (models.Contact, error) {
	if c, ok := f.contactsByEmail[email]; ok {
		return c, nil
	}
	return models.Contact{}, repository.ErrNotFound
}

func (f *fakeEntities) CreateContact(ctx context.Context, c models.Contact) (models.Contact, error) {
	c.ID = f.genID()
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	f.contacts[c.ID] = c
	f.contactsByEmail[c.Email] = c
	f.createdContacts = append(f.createdContacts, c)
	return c, nil
}

func (f *fakeEntities) UpdateContactFields(ctx context.Context, orgID, id string, fields map[string]string) error {
	if _, ok := f.contacts[id]; !ok {
		return repository.ErrNotFound
	}
	f.contactUpdates = append(f.contactUpdates, fieldUpdate{id: id, fields: fields})
	return nil
}

func (f *fakeEntities) GetDeal(ctx context.Context, orgID, id string) (models.Deal, error) {
	if d, ok := f.deals[id]; ok {
		return d, nil
	}
	return models.Deal{}, repository.ErrNotFound
}

func (f *fakeEntities) CreateDeal(ctx context.Context, d models.Deal) (models.Deal, error) {
	d.ID = f.genID()
	f.deals[d.ID] = d
	return d, nil
}

func (f *fakeEntities) UpdateDealFields(ctx context.Context, orgID, id string, fields map[string]string) error {
	if _, ok := f.deals[id]; !ok {
		return repository.ErrNotFound
	}
	f.dealUpdates = append(f.dealUpdates, fieldUpdate{id: id, fields: fields})
	return nil
}

func (f *fakeEntities) GetTask(ctx context.Context, orgID, id string) (models.Task, error) {
	if t, ok := f.tasks[id]; ok {
		return t, nil
	}
	return models.Task{}, repository.ErrNotFound
}

func (f *fakeEntities) CreateTask(ctx context.Context, t models.Task) (models.Task, error) {
	t.ID = f.genID()
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	f.tasks[t.ID] = t
	f.createdTasks = append(f.createdTasks, t)
	return t, nil
}

func (f *fakeEntities) UpdateTaskFields(ctx context.Context, orgID, id string, fields map[string]string) error {
	if _, ok := f.tasks[id]; !ok {
		return repository.ErrNotFound
	}
	f.taskUpdates = append(f.taskUpdates, fieldUpdate{id: id, fields: fields})
	return nil
}

func (f *fakeEntities) GetNote(ctx context.Context, orgID, id string) (models.Note, error) {
	if n, ok := f.notes[id]; ok {
		return n, nil
	}
	return models.Note{}, repository.ErrNotFound
}

func (f *fakeEntities) GetQuote(ctx context.Context, orgID, id string) (models.Quote, error) {
	if q, ok := f.quotes[id]; ok {
		return q, nil
	}
	return models.Quote{}, repository.ErrNotFound
}

func (f *fakeEntities) UpdateQuoteFields(ctx context.Context, orgID, id string, fields map[string]string) error {
	if _, ok := f.quotes[id]; !ok {
		return repository.ErrNotFound
	}
	return nil
}

func (f *fakeEntities) GetLineItem(ctx context.Context, orgID, id string) (models.LineItem, error) {
	if li, ok := f.lineItems[id]; ok {
		return li, nil
	}
	return models.LineItem{}, repository.ErrNotFound
}

func (f *fakeEntities) UpdateLineItemFields(ctx context.Context, orgID, id string, fields map[string]string) error {
	if _, ok := f.lineItems[id]; !ok {
		return repository.ErrNotFound
	}
	return nil
}

func (f *fakeEntities) GetCustomObject(ctx context.Context, orgID, id string) (models.CustomObject, error) {
	if obj, ok := f.customObjects[id]; ok {
		return obj, nil
	}
	return models.CustomObject{}, repository.ErrNotFound
}

func (f *fakeEntities) CreateCustomObject(ctx context.Context, obj models.CustomObject) (models.CustomObject, error) {
	obj.ID = f.genID()
	f.customObjects[obj.ID] = obj
	return obj, nil
}

func (f *fakeEntities) UpdateCustomObjectProperties(ctx context.Context, orgID, id string, properties map[string]string) error {
	if _, ok := f.customObjects[id]; !ok {
		return repository.ErrNotFound
	}
	return nil
}

type fakeCursors struct {
	cursors     map[string]time.Time
	seen        map[string]bool
	recorded    []string
	cursorWrite map[string]time.Time
}

func newFakeCursors() *fakeCursors {
	return &fakeCursors{
		cursors:     map[string]time.Time{},
		seen:        map[string]bool{},
		cursorWrite: map[string]time.Time{},
	}
}

func (f *fakeCursors) GetCursor(ctx context.Context, orgID, formID string) (time.Time, error) {
	return f.cursors[formID], nil
}

func (f *fakeCursors) SetCursor(ctx context.Context, orgID, formID string, at time.Time) error {
	f.cursors[formID] = at
	f.cursorWrite[formID] = at
	return nil
}

func (f *fakeCursors) SubmissionSeen(ctx context.Context, orgID, submissionID string) (bool, error) {
	return f.seen[submissionID], nil
}

func (f *fakeCursors) RecordSubmission(ctx context.Context, orgID, formID, submissionID, localID string) error {
	f.seen[submissionID] = true
	f.recorded = append(f.recorded, submissionID)
	return nil
}

type fakeLocks struct {
	held       bool
	acquireErr error
	acquired   []string
	released   []string
}

func (f *fakeLocks) TryAcquire(ctx context.Context, name, holder string, ttl time.Duration) (bool, error) {
	if f.acquireErr != nil {
		return false, f.acquireErr
	}
	if f.held {
		return false, nil
	}
	f.acquired = append(f.acquired, holder)
	return true, nil
}

func (f *fakeLocks) Release(ctx context.Context, name, holder string) error {
	f.released = append(f.released, holder)
	return nil
}

type fakeAudit struct {
	entries []models.AuditEntry
}

func (f *fakeAudit) Append(ctx context.Context, entry models.AuditEntry) error {
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeAudit) ListRecent(ctx context.Context, orgID string, limit int) ([]models.AuditEntry, error) {
	return f.entries, nil
}

// fakeAPI satisfies partner.API through overridable function fields. Calls
// without an override fail the path loudly.
type fakeAPI struct {
	refreshTokenFn    func(ctx context.Context, refreshToken string) (partner.TokenGrant, error)
	getObjectFn       func(ctx context.Context, token, objectType, id string, properties []string) (*partner.Object, error)
	searchObjectsFn   func(ctx context.Context, token, objectType, property, value string, properties []string) (*partner.Object, error)
	createObjectFn    func(ctx context.Context, token, objectType string, properties map[string]string) (*partner.Object, error)
	updateObjectFn    func(ctx context.Context, token, objectType, id string, properties map[string]string) error
	associateFn       func(ctx context.Context, token, fromType, fromID, toType, toID string) error
	listPropertiesFn  func(ctx context.Context, token, objectType string) ([]partner.PropertyDef, error)
	createPropertyFn  func(ctx context.Context, token, objectType string, def partner.PropertyDef) error
	listSubmissionsFn func(ctx context.Context, token, formID string, after time.Time) ([]partner.FormSubmission, error)
	listLegacyFn      func(ctx context.Context, token, formID string, after time.Time) ([]partner.FormSubmission, error)
}

func (f *fakeAPI) RefreshToken(ctx context.Context, refreshToken string) (partner.TokenGrant, error) {
	if f.refreshTokenFn == nil {
		return partner.TokenGrant{}, errors.New("unexpected RefreshToken call")
	}
	return f.refreshTokenFn(ctx, refreshToken)
}

func (f *fakeAPI) GetObject(ctx context.Context, token, objectType, id string, properties []string) (*partner.Object, error) {
	if f.getObjectFn == nil {
		return nil, errors.New("unexpected GetObject call")
	}
	return f.getObjectFn(ctx, token, objectType, id, properties)
}

func (f *fakeAPI) SearchObjects(ctx context.Context, token, objectType, property, value string, properties []string) (*partner.Object, error) {
	if f.searchObjectsFn == nil {
		return nil, errors.New("unexpected SearchObjects call")
	}
	return f.searchObjectsFn(ctx, token, objectType, property, value, properties)
}

func (f *fakeAPI) CreateObject(ctx context.Context, token, objectType string, properties map[string]string) (*partner.Object, error) {
	if f.createObjectFn == nil {
		return nil, errors.New("unexpected CreateObject call")
	}
	return f.createObjectFn(ctx, token, objectType, properties)
}

func (f *fakeAPI) UpdateObject(ctx context.Context, token, objectType, id string, properties map[string]string) error {
	if f.updateObjectFn == nil {
		return errors.New("unexpected UpdateObject call")
	}
	return f.updateObjectFn(ctx, token, objectType, id, properties)
}

func (f *fakeAPI) Associate(ctx context.Context, token, fromType, fromID, toType, toID string) error {
	if f.associateFn == nil {
		return errors.New("unexpected Associate call")
	}
	return f.associateFn(ctx, token, fromType, fromID, toType, toID)
}

func (f *fakeAPI) ListProperties(ctx context.Context, token, objectType string) ([]partner.PropertyDef, error) {
	if f.listPropertiesFn == nil {
		return nil, errors.New("unexpected ListProperties call")
	}
	return f.listPropertiesFn(ctx, token, objectType)
}

func (f *fakeAPI) CreateProperty(ctx context.Context, token, objectType string, def partner.PropertyDef) error {
	if f.createPropertyFn == nil {
		return errors.New("unexpected CreateProperty call")
	}
	return f.createPropertyFn(ctx, token, objectType, def)
}

func (f *fakeAPI) ListFormSubmissions(ctx context.Context, token, formID string, after time.Time) ([]partner.FormSubmission, error) {
	if f.listSubmissionsFn == nil {
		return nil, errors.New("unexpected ListFormSubmissions call")
	}
	return f.listSubmissionsFn(ctx, token, formID, after)
}

func (f *fakeAPI) ListFormSubmissionsLegacy(ctx context.Context, token, formID string, after time.Time) ([]partner.FormSubmission, error) {
	if f.listLegacyFn == nil {
		return nil, errors.New("unexpected ListFormSubmissionsLegacy call")
	}
	return f.listLegacyFn(ctx, token, formID, after)
}

type fixture struct {
	jobs     *fakeJobs
	creds    *fakeCreds
	mappings *fakeMappings
	entities *fakeEntities
	cursors  *fakeCursors
	locks    *fakeLocks
	audit    *fakeAudit
	api      *fakeAPI
	worker   *Worker
}

func newFixture() *fixture {
	f := &fixture{
		jobs:     &fakeJobs{},
		creds:    &fakeCreds{},
		mappings: newFakeMappings(),
		entities: newFakeEntities(),
		cursors:  newFakeCursors(),
		locks:    &fakeLocks{},
		audit:    &fakeAudit{},
		api:      &fakeAPI{},
	}
	f.creds.cred = models.OrgCredential{
		OrgID:          "org-1",
		AccessToken:    "tok",
		RefreshToken:   "ref",
		TokenExpiresAt: time.Now().Add(time.Hour),
	}
	f.creds.integration = models.Integration{OrgID: "org-1", IsConnected: true}
	f.worker = NewWorker(WorkerConfig{
		Jobs:        f.jobs,
		Credentials: f.creds,
		Mappings:    f.mappings,
		Entities:    f.entities,
		Cursors:     f.cursors,
		Locks:       f.locks,
		Audit:       f.audit,
		API:         f.api,

		BaseBackoff: 30 * time.Second,
		BackoffCap:  time.Hour,
	}, zerolog.Nop())
	f.worker.sleep = func(time.Duration) {}
	return f
}

func (f *fixture) env() *orgEnv {
	return newOrgEnv("org-1", "tok", nil, nil, zerolog.Nop())
}
