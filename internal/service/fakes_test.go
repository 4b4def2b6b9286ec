package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/civic-issue-service/internal/domain"
	"github.com/spec-kit/civic-issue-service/internal/repository"
)

var fixedNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func clockAt(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func intPtr(v int) *int       { return &v }
func int64Ptr(v int64) *int64 { return &v }
func strPtr(v string) *string { return &v }

// fakeIssueStore backs both the issue and history repositories.
type fakeIssueStore struct {
	mu        sync.Mutex
	issues    map[int64]*domain.Issue
	history   []domain.IssueStatusHistory
	nextID    int64
	nextHist  int64
	createErr error
	// markErr fails MarkBreached for the listed issue ids.
	markErr map[int64]error
}

func newFakeIssueStore() *fakeIssueStore {
	return &fakeIssueStore{issues: map[int64]*domain.Issue{}}
}

func (f *fakeIssueStore) Create(_ context.Context, issue *domain.Issue) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.nextID++
	issue.ID = f.nextID
	issue.UpdatedAt = issue.CreatedAt
	stored := *issue
	f.issues[issue.ID] = &stored
	return nil
}

func (f *fakeIssueStore) GetByID(_ context.Context, id int64) (*domain.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	issue, ok := f.issues[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *issue
	return &copied, nil
}

func (f *fakeIssueStore) ListWithFilter(_ context.Context, filter repository.IssueFilter) ([]domain.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Issue
	for _, issue := range f.issues {
		if filter.Scope.CitizenID != nil && issue.CitizenID != *filter.Scope.CitizenID {
			continue
		}
		if filter.Scope.OfficerID != nil && (issue.OfficerID == nil || *issue.OfficerID != *filter.Scope.OfficerID) {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, issue.Status) {
			continue
		}
		out = append(out, *issue)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (f *fakeIssueStore) UpdateDetails(_ context.Context, issue *domain.Issue) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.issues[issue.ID]
	if !ok || stored.Status != domain.IssueStatusOpen {
		return repository.ErrStaleIssue
	}
	stored.Description = issue.Description
	stored.Address = issue.Address
	stored.Landmark = issue.Landmark
	stored.ImageURL = issue.ImageURL
	return nil
}

func (f *fakeIssueStore) DeleteOpen(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.issues[id]
	if !ok || stored.Status != domain.IssueStatusOpen {
		return repository.ErrStaleIssue
	}
	delete(f.issues, id)
	kept := f.history[:0]
	for _, h := range f.history {
		if h.IssueID != id {
			kept = append(kept, h)
		}
	}
	f.history = kept
	return nil
}

func (f *fakeIssueStore) TransitionStatus(_ context.Context, id int64, from, to domain.IssueStatus, changedBy int64) (*domain.Issue, *domain.IssueStatusHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.issues[id]
	if !ok || stored.Status != from {
		return nil, nil, repository.ErrStaleIssue
	}
	stored.Status = to
	f.nextHist++
	entry := domain.IssueStatusHistory{
		ID:        f.nextHist,
		IssueID:   id,
		OldStatus: from,
		NewStatus: to,
		ChangedBy: changedBy,
	}
	f.history = append(f.history, entry)
	copied := *stored
	return &copied, &entry, nil
}

func (f *fakeIssueStore) ListBreachCandidates(_ context.Context, now time.Time) ([]domain.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Issue
	for _, issue := range f.issues {
		if issue.IsOverdue(now) {
			out = append(out, *issue)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeIssueStore) MarkBreached(_ context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.markErr[id]; err != nil {
		return false, err
	}
	stored, ok := f.issues[id]
	if !ok || stored.SLABreached || stored.Status == domain.IssueStatusResolved || stored.Status == domain.IssueStatusClosed {
		return false, nil
	}
	stored.SLABreached = true
	stored.EscalationLevel++
	return true, nil
}

func (f *fakeIssueStore) ListByIssue(_ context.Context, issueID int64) ([]domain.IssueStatusHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.IssueStatusHistory
	for _, h := range f.history {
		if h.IssueID == issueID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (f *fakeIssueStore) openLoad(officerID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	load := 0
	for _, issue := range f.issues {
		if issue.OfficerID != nil && *issue.OfficerID == officerID && issue.Status.CountsAsWorkload() {
			load++
		}
	}
	return load
}

func (f *fakeIssueStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.issues)
}

func containsStatus(statuses []domain.IssueStatus, s domain.IssueStatus) bool {
	for _, candidate := range statuses {
		if candidate == s {
			return true
		}
	}
	return false
}

type fakeDepartmentRepo struct {
	mu     sync.Mutex
	depts  []domain.Department
	nextID int64
}

func (f *fakeDepartmentRepo) Create(_ context.Context, dept *domain.Department) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	dept.ID = f.nextID
	f.depts = append(f.depts, *dept)
	return nil
}

func (f *fakeDepartmentRepo) GetByID(_ context.Context, id int64) (*domain.Department, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.depts {
		if f.depts[i].ID == id {
			d := f.depts[i]
			return &d, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeDepartmentRepo) FindByName(_ context.Context, name string) (*domain.Department, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.depts {
		if strings.EqualFold(f.depts[i].Name, name) {
			d := f.depts[i]
			return &d, nil
		}
	}
	return nil, pgx.ErrNoRows
}

// fakeOfficerRepo derives workload from the issue store when one is attached,
// otherwise from the static load map.
type fakeOfficerRepo struct {
	mu       sync.Mutex
	officers []domain.Officer
	load     map[int64]int
	issues   *fakeIssueStore
}

func (f *fakeOfficerRepo) Create(_ context.Context, officer *domain.Officer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if officer.ID == 0 {
		officer.ID = int64(len(f.officers) + 1)
	}
	f.officers = append(f.officers, *officer)
	return nil
}

func (f *fakeOfficerRepo) GetByID(_ context.Context, id int64) (*domain.Officer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.officers {
		if f.officers[i].ID == id {
			o := f.officers[i]
			return &o, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeOfficerRepo) GetByUserID(_ context.Context, userID int64) (*domain.Officer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.officers {
		if f.officers[i].UserID == userID {
			o := f.officers[i]
			return &o, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeOfficerRepo) ListActive(_ context.Context, departmentID int64, area *string) ([]domain.Officer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Officer
	for _, o := range f.officers {
		if o.DepartmentID != departmentID || !o.IsActive {
			continue
		}
		if area != nil && o.Area != *area {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeOfficerRepo) CountOpenAssignments(_ context.Context, officerID int64) (int, error) {
	if f.issues != nil {
		return f.issues.openLoad(officerID), nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.load[officerID], nil
}

type fakeNotificationRepo struct {
	mu     sync.Mutex
	items  []domain.Notification
	nextID int64
}

func (f *fakeNotificationRepo) Create(_ context.Context, n *domain.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	n.ID = f.nextID
	n.CreatedAt = fixedNow
	f.items = append(f.items, *n)
	return nil
}

func (f *fakeNotificationRepo) GetByID(_ context.Context, id int64) (*domain.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		if f.items[i].ID == id {
			n := f.items[i]
			return &n, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeNotificationRepo) ListByUser(_ context.Context, userID int64) ([]domain.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Notification
	for i := len(f.items) - 1; i >= 0; i-- {
		if f.items[i].UserID == userID {
			out = append(out, f.items[i])
		}
	}
	return out, nil
}

func (f *fakeNotificationRepo) MarkRead(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		if f.items[i].ID == id {
			f.items[i].Read = true
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (f *fakeNotificationRepo) MarkAllRead(_ context.Context, userID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var changed int64
	for i := range f.items {
		if f.items[i].UserID == userID && !f.items[i].Read {
			f.items[i].Read = true
			changed++
		}
	}
	return changed, nil
}

type sentNotification struct {
	UserID  int64
	Kind    domain.NotificationType
	Message string
	IssueID *int64
}

// recordingNotifier captures notifications; err makes every call fail.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
	err  error
}

func (r *recordingNotifier) Notify(_ context.Context, userID int64, kind domain.NotificationType, message string, issueID *int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, sentNotification{UserID: userID, Kind: kind, Message: message, IssueID: issueID})
	return nil
}

func (r *recordingNotifier) byKind(kind domain.NotificationType) []sentNotification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []sentNotification
	for _, n := range r.sent {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

type fakeUserRepo struct {
	mu     sync.Mutex
	users  []domain.User
	nextID int64
}

func (f *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	user.ID = f.nextID
	f.users = append(f.users, *user)
	return nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id int64) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.users {
		if f.users[i].ID == id {
			u := f.users[i]
			return &u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.users {
		if strings.EqualFold(f.users[i].Email, email) {
			u := f.users[i]
			return &u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

// fakeAnalyticsRepo returns canned results and records the scopes it saw.
type fakeAnalyticsRepo struct {
	mu      sync.Mutex
	stats   domain.IssueStats
	daily   []domain.CountByKey
	monthly []domain.CountByKey
	grouped map[repository.Dimension][]domain.CountByKey
	avg     float64
	calls   int
	scopes  []repository.IssueScope
}

func (f *fakeAnalyticsRepo) record(scope repository.IssueScope) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.scopes = append(f.scopes, scope)
}

func (f *fakeAnalyticsRepo) StatusCounts(_ context.Context, scope repository.IssueScope) (*domain.IssueStats, error) {
	f.record(scope)
	stats := f.stats
	return &stats, nil
}

func (f *fakeAnalyticsRepo) CountCreatedSince(_ context.Context, scope repository.IssueScope, bucket repository.Bucket, _ time.Time) ([]domain.CountByKey, error) {
	f.record(scope)
	if bucket == repository.BucketDay {
		return f.daily, nil
	}
	return f.monthly, nil
}

func (f *fakeAnalyticsRepo) CountGrouped(_ context.Context, scope repository.IssueScope, dimension repository.Dimension) ([]domain.CountByKey, error) {
	f.record(scope)
	return f.grouped[dimension], nil
}

func (f *fakeAnalyticsRepo) AverageResolutionHours(_ context.Context, scope repository.IssueScope) (float64, error) {
	f.record(scope)
	return f.avg, nil
}

func (f *fakeAnalyticsRepo) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeCache struct {
	mu     sync.Mutex
	values map[string][]byte
	getErr error
}

func newFakeCache() *fakeCache {
	return &fakeCache{values: map[string][]byte{}}
}

func (f *fakeCache) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	v, ok := f.values[key]
	if !ok {
		return nil, repository.ErrCacheMiss
	}
	return v, nil
}

func (f *fakeCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
	return nil
}

func (f *fakeCache) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.values, k)
	}
	return nil
}

var errNotifierDown = errors.New("notifier down")

// cityFixture wires the services over in-memory repositories.
type cityFixture struct {
	issues      *fakeIssueStore
	departments *fakeDepartmentRepo
	officers    *fakeOfficerRepo
	notifier    *recordingNotifier
	issueSvc    *IssueService
	slaSvc      *SLAService
}

func newCityFixture(now time.Time) *cityFixture {
	issues := newFakeIssueStore()
	departments := &fakeDepartmentRepo{}
	officers := &fakeOfficerRepo{issues: issues}
	notifier := &recordingNotifier{}
	resolver := NewAssignmentService(AssignmentDependencies{DepartmentRepo: departments, OfficerRepo: officers})
	return &cityFixture{
		issues:      issues,
		departments: departments,
		officers:    officers,
		notifier:    notifier,
		issueSvc: NewIssueService(IssueDependencies{
			IssueRepo:       issues,
			HistoryRepo:     issues,
			OfficerRepo:     officers,
			Resolver:        resolver,
			Notifier:        notifier,
			DefaultSLAHours: 72,
			Now:             clockAt(now),
		}),
		slaSvc: NewSLAService(SLADependencies{
			IssueRepo:   issues,
			OfficerRepo: officers,
			Notifier:    notifier,
			Concurrency: 4,
			Now:         clockAt(now),
		}),
	}
}

func (f *cityFixture) addDepartment(name string, slaHours *int) domain.Department {
	dept := domain.Department{Name: name, SLAHours: slaHours}
	_ = f.departments.Create(context.Background(), &dept)
	return dept
}

func (f *cityFixture) addOfficer(id, userID, departmentID int64, area string) domain.Officer {
	officer := domain.Officer{ID: id, UserID: userID, DepartmentID: departmentID, Area: area, IsActive: true}
	_ = f.officers.Create(context.Background(), &officer)
	return officer
}

func (f *cityFixture) seedIssue(issue domain.Issue) *domain.Issue {
	if issue.Status == "" {
		issue.Status = domain.IssueStatusOpen
	}
	_ = f.issues.Create(context.Background(), &issue)
	return &issue
}

func reportInput(category, area string) IssueCreateInput {
	return IssueCreateInput{
		Title:       "Broken streetlight",
		Description: "The light on the corner has been out for a week",
		Address:     "12 Main Road",
		Category:    category,
		Area:        area,
	}
}

func newDept(name string) *domain.Department {
	return &domain.Department{Name: name}
}

func newOfficer(id, userID, departmentID int64, area string) *domain.Officer {
	return &domain.Officer{ID: id, UserID: userID, DepartmentID: departmentID, Area: area, IsActive: true}
}
