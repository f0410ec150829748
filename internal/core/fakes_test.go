package core

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"sitebrief-backend-go/internal/db"
	"sitebrief-backend-go/internal/models"
)

// In-memory repository fakes. They copy on read and write and run their
// mutators under a mutex, mirroring the transactional read-modify-write the
// real store gives.

// --- users ---

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newFakeUserRepo(users ...*models.User) *fakeUserRepo {
	r := &fakeUserRepo{users: make(map[string]*models.User)}
	for _, u := range users {
		copied := *u
		r.users[u.ID] = &copied
	}
	return r
}

func (r *fakeUserRepo) GetByID(_ context.Context, userID string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok {
		return nil, fmt.Errorf("%w: user '%s'", db.ErrNotFound, userID)
	}
	copied := *user
	return &copied, nil
}

func (r *fakeUserRepo) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *user
	r.users[user.ID] = &copied
	return nil
}

func (r *fakeUserRepo) Update(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return fmt.Errorf("%w: user '%s'", db.ErrNotFound, user.ID)
	}
	copied := *user
	r.users[user.ID] = &copied
	return nil
}

func (r *fakeUserRepo) IncrementGenerationsUsed(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok {
		return fmt.Errorf("%w: user '%s'", db.ErrNotFound, userID)
	}
	user.GenerationsUsed++
	return nil
}

// --- prompts and the edit log ---

// fakePromptRepo also owns the edit records so ApplyEdit can append them in the
// same critical section, like the real transaction does.
type fakePromptRepo struct {
	mu      sync.Mutex
	nextID  int
	prompts map[string]*models.Prompt
	records []*models.EditRecord

	// afterGet, when set, runs after each GetByID outside the critical
	// section. Tests use it to interleave a concurrent write between a
	// service's read and its follow-up update.
	afterGet func()
}

func newFakePromptRepo(prompts ...*models.Prompt) *fakePromptRepo {
	r := &fakePromptRepo{prompts: make(map[string]*models.Prompt)}
	for _, p := range prompts {
		r.prompts[p.ID] = copyPrompt(p)
	}
	return r
}

func copyPrompt(p *models.Prompt) *models.Prompt {
	copied := *p
	copied.Sections = append([]models.Section(nil), p.Sections...)
	copied.Collaborators = append([]string(nil), p.Collaborators...)
	return &copied
}

func (r *fakePromptRepo) Create(_ context.Context, prompt *models.Prompt) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := "prompt-" + strconv.Itoa(r.nextID)
	prompt.ID = id
	r.prompts[id] = copyPrompt(prompt)
	return id, nil
}

func (r *fakePromptRepo) GetByID(_ context.Context, promptID string) (*models.Prompt, error) {
	r.mu.Lock()
	prompt, ok := r.prompts[promptID]
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: prompt '%s'", db.ErrNotFound, promptID)
	}
	copied := copyPrompt(prompt)
	hook := r.afterGet
	r.mu.Unlock()

	if hook != nil {
		hook()
	}
	return copied, nil
}

func (r *fakePromptRepo) GetByOwnerID(_ context.Context, ownerID string) ([]*models.Prompt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*models.Prompt
	for _, p := range r.prompts {
		if p.OwnerID == ownerID {
			result = append(result, copyPrompt(p))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r *fakePromptRepo) Update(_ context.Context, prompt *models.Prompt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.prompts[prompt.ID]; !ok {
		return fmt.Errorf("%w: prompt '%s'", db.ErrNotFound, prompt.ID)
	}
	r.prompts[prompt.ID] = copyPrompt(prompt)
	return nil
}

// UpdateFields patches only the named fields, mirroring the field-path update
// the Firestore repository performs. Sections and version are deliberately not
// reachable from here.
func (r *fakePromptRepo) UpdateFields(_ context.Context, promptID string, fields map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	prompt, ok := r.prompts[promptID]
	if !ok {
		return fmt.Errorf("%w: prompt '%s'", db.ErrNotFound, promptID)
	}
	for path, value := range fields {
		switch path {
		case "isPublic":
			prompt.IsPublic = value.(bool)
		case "shareMode":
			prompt.ShareMode = value.(string)
		case "collaborators":
			prompt.Collaborators = append([]string(nil), value.([]string)...)
		case "updatedAt":
			prompt.UpdatedAt = value.(time.Time)
		case "mapsUrl":
			prompt.MapsURL = value.(string)
		case "businessName":
			prompt.BusinessName = value.(string)
		case "businessAddress":
			prompt.BusinessAddress = value.(string)
		default:
			return fmt.Errorf("unsupported field path '%s'", path)
		}
	}
	return nil
}

func (r *fakePromptRepo) Delete(_ context.Context, promptID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.prompts, promptID)
	return nil
}

func (r *fakePromptRepo) ApplyEdit(_ context.Context, promptID string, mutate db.EditMutator) (*models.EditRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.prompts[promptID]
	if !ok {
		return nil, fmt.Errorf("%w: prompt '%s'", db.ErrNotFound, promptID)
	}

	working := copyPrompt(stored)
	record, err := mutate(working)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("edit mutator returned no record for prompt '%s'", promptID)
	}

	r.prompts[promptID] = working
	record.ID = "edit-" + strconv.Itoa(len(r.records)+1)
	record.PromptID = promptID
	r.records = append(r.records, record)
	return record, nil
}

func (r *fakePromptRepo) allRecords() []*models.EditRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.EditRecord, 0, len(r.records))
	for _, rec := range r.records {
		copied := *rec
		out = append(out, &copied)
	}
	return out
}

// fakeEditRepo reads the log the fakePromptRepo writes.
type fakeEditRepo struct {
	prompts *fakePromptRepo
}

func (r *fakeEditRepo) GetByPromptID(_ context.Context, promptID string, limit int) ([]*models.EditRecord, error) {
	r.prompts.mu.Lock()
	defer r.prompts.mu.Unlock()
	var result []*models.EditRecord
	for i := len(r.prompts.records) - 1; i >= 0 && len(result) < limit; i-- {
		if r.prompts.records[i].PromptID == promptID {
			copied := *r.prompts.records[i]
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (r *fakeEditRepo) DeleteByPromptID(_ context.Context, promptID string) error {
	r.prompts.mu.Lock()
	defer r.prompts.mu.Unlock()
	kept := r.prompts.records[:0]
	for _, rec := range r.prompts.records {
		if rec.PromptID != promptID {
			kept = append(kept, rec)
		}
	}
	r.prompts.records = kept
	return nil
}

// --- sessions ---

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]*models.Session)}
}

func sessionKey(promptID, userID string) string { return promptID + "_" + userID }

func (r *fakeSessionRepo) Upsert(_ context.Context, promptID, userID string, now time.Time) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := sessionKey(promptID, userID)
	if existing, ok := r.sessions[key]; ok {
		existing.LastActiveAt = now
		copied := *existing
		return &copied, nil
	}
	session := &models.Session{
		ID:           key,
		PromptID:     promptID,
		UserID:       userID,
		JoinedAt:     now,
		LastActiveAt: now,
	}
	r.sessions[key] = session
	copied := *session
	return &copied, nil
}

func (r *fakeSessionRepo) Delete(_ context.Context, promptID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionKey(promptID, userID))
	return nil
}

func (r *fakeSessionRepo) UpdateCursor(_ context.Context, promptID, userID string, cursor models.Cursor, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[sessionKey(promptID, userID)]
	if !ok {
		return db.ErrNotFound
	}
	session.Cursor = &cursor
	session.LastActiveAt = now
	return nil
}

func (r *fakeSessionRepo) SetTyping(_ context.Context, promptID, userID string, isTyping bool, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[sessionKey(promptID, userID)]
	if !ok {
		return db.ErrNotFound
	}
	session.IsTyping = isTyping
	session.LastActiveAt = now
	return nil
}

func (r *fakeSessionRepo) GetByPromptID(_ context.Context, promptID string) ([]*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*models.Session
	for _, s := range r.sessions {
		if s.PromptID == promptID {
			copied := *s
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].UserID < result[j].UserID })
	return result, nil
}

func (r *fakeSessionRepo) DeleteByPromptID(_ context.Context, promptID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, s := range r.sessions {
		if s.PromptID == promptID {
			delete(r.sessions, key)
		}
	}
	return nil
}

// --- locks ---

type fakeLockRepo struct {
	mu    sync.Mutex
	locks map[string]*models.SectionLock
}

func newFakeLockRepo() *fakeLockRepo {
	return &fakeLockRepo{locks: make(map[string]*models.SectionLock)}
}

func lockKey(promptID string, sectionIndex int) string {
	return promptID + "_" + strconv.Itoa(sectionIndex)
}

func (r *fakeLockRepo) Mutate(_ context.Context, promptID string, sectionIndex int, fn db.LockMutator) (*models.SectionLock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := lockKey(promptID, sectionIndex)

	var existing *models.SectionLock
	if stored, ok := r.locks[key]; ok {
		copied := *stored
		existing = &copied
	}

	next, err := fn(existing)
	if err != nil {
		return nil, err
	}
	switch {
	case next == nil:
		delete(r.locks, key)
		return nil, nil
	case next == existing:
		return existing, nil
	default:
		next.ID = key
		next.PromptID = promptID
		next.SectionIndex = sectionIndex
		copied := *next
		r.locks[key] = &copied
		return next, nil
	}
}

func (r *fakeLockRepo) GetByPromptID(_ context.Context, promptID string) ([]*models.SectionLock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*models.SectionLock
	for _, l := range r.locks {
		if l.PromptID == promptID {
			copied := *l
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].SectionIndex < result[j].SectionIndex })
	return result, nil
}

func (r *fakeLockRepo) DeleteByPromptID(_ context.Context, promptID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, l := range r.locks {
		if l.PromptID == promptID {
			delete(r.locks, key)
		}
	}
	return nil
}

// --- invites ---

type fakeInviteRepo struct {
	mu      sync.Mutex
	nextID  int
	invites map[string]*models.Invite
	prompts *fakePromptRepo // Accept writes the prompt too
}

func newFakeInviteRepo(prompts *fakePromptRepo) *fakeInviteRepo {
	return &fakeInviteRepo{invites: make(map[string]*models.Invite), prompts: prompts}
}

func (r *fakeInviteRepo) Create(_ context.Context, invite *models.Invite) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := "invite-" + strconv.Itoa(r.nextID)
	invite.ID = id
	copied := *invite
	r.invites[id] = &copied
	return id, nil
}

func (r *fakeInviteRepo) GetByID(_ context.Context, inviteID string) (*models.Invite, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	invite, ok := r.invites[inviteID]
	if !ok {
		return nil, fmt.Errorf("%w: invite '%s'", db.ErrNotFound, inviteID)
	}
	copied := *invite
	return &copied, nil
}

func (r *fakeInviteRepo) GetByToken(_ context.Context, token string) (*models.Invite, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, invite := range r.invites {
		if invite.Token == token {
			copied := *invite
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("%w: invite token", db.ErrNotFound)
}

func (r *fakeInviteRepo) GetByPromptID(_ context.Context, promptID string) ([]*models.Invite, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*models.Invite
	for _, invite := range r.invites {
		if invite.PromptID == promptID {
			copied := *invite
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r *fakeInviteRepo) Update(_ context.Context, invite *models.Invite) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.invites[invite.ID]; !ok {
		return fmt.Errorf("%w: invite '%s'", db.ErrNotFound, invite.ID)
	}
	copied := *invite
	r.invites[invite.ID] = &copied
	return nil
}

func (r *fakeInviteRepo) Accept(_ context.Context, inviteID, promptID string, fn db.AcceptMutator) (*models.Invite, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prompts.mu.Lock()
	defer r.prompts.mu.Unlock()

	storedInvite, ok := r.invites[inviteID]
	if !ok {
		return nil, fmt.Errorf("%w: invite '%s'", db.ErrNotFound, inviteID)
	}
	storedPrompt, ok := r.prompts.prompts[promptID]
	if !ok {
		return nil, fmt.Errorf("%w: prompt '%s'", db.ErrNotFound, promptID)
	}

	invite := *storedInvite
	prompt := copyPrompt(storedPrompt)
	if err := fn(&invite, prompt); err != nil {
		return nil, err
	}

	r.invites[inviteID] = &invite
	r.prompts.prompts[promptID] = prompt
	copied := invite
	return &copied, nil
}

func (r *fakeInviteRepo) DeleteByPromptID(_ context.Context, promptID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, invite := range r.invites {
		if invite.PromptID == promptID {
			delete(r.invites, id)
		}
	}
	return nil
}

// --- shared test fixtures ---

func testPrompt(id, ownerID string, sectionCount int) *models.Prompt {
	sections := make([]models.Section, 0, sectionCount)
	for i := 0; i < sectionCount; i++ {
		sections = append(sections, models.Section{
			Header:  "Section " + strconv.Itoa(i),
			Content: "Content " + strconv.Itoa(i),
		})
	}
	return &models.Prompt{
		ID:       id,
		OwnerID:  ownerID,
		Title:    "Test Brief",
		Sections: sections,
	}
}
