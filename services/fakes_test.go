package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Dosada05/esports-booking/models"
	"github.com/Dosada05/esports-booking/repositories"
	"github.com/Dosada05/esports-booking/storage"
)

// memDB - общее in-memory хранилище для всех фейковых репозиториев.
// WithinTx сериализует транзакции и откатывает изменения при ошибке.
type memDB struct {
	mu   sync.Mutex
	txMu sync.Mutex

	nextID        int
	users         map[int]models.User
	admins        map[int]models.Admin
	adminLogs     []models.AdminLog
	tournaments   map[int]models.Tournament
	bookings      map[int]models.Booking
	keys          map[string]string
	notifications map[int]models.Notification
	inbox         map[int]models.InboxEntry
	contacts      map[int]models.ContactMessage
	settings      map[string][]byte
	leaderboard   map[int]models.LeaderboardEntry
	blogs         map[int]models.BlogPost

	failures map[string]error
}

func newMemDB() *memDB {
	return &memDB{
		users:         map[int]models.User{},
		admins:        map[int]models.Admin{},
		tournaments:   map[int]models.Tournament{},
		bookings:      map[int]models.Booking{},
		keys:          map[string]string{},
		notifications: map[int]models.Notification{},
		inbox:         map[int]models.InboxEntry{},
		contacts:      map[int]models.ContactMessage{},
		settings:      map[string][]byte{},
		leaderboard:   map[int]models.LeaderboardEntry{},
		blogs:         map[int]models.BlogPost{},
		failures:      map[string]error{},
	}
}

// failOn заставляет операцию op ("notifications.CreateBatch" и т.п.) возвращать err.
func (db *memDB) failOn(op string, err error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.failures[op] = err
}

func (db *memDB) fail(op string) error {
	return db.failures[op]
}

func (db *memDB) id() int {
	db.nextID++
	return db.nextID
}

type memSnapshot struct {
	nextID        int
	users         map[int]models.User
	admins        map[int]models.Admin
	adminLogs     []models.AdminLog
	tournaments   map[int]models.Tournament
	bookings      map[int]models.Booking
	keys          map[string]string
	notifications map[int]models.Notification
	inbox         map[int]models.InboxEntry
	contacts      map[int]models.ContactMessage
	settings      map[string][]byte
	leaderboard   map[int]models.LeaderboardEntry
	blogs         map[int]models.BlogPost
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (db *memDB) snapshot() memSnapshot {
	db.mu.Lock()
	defer db.mu.Unlock()
	return memSnapshot{
		nextID:        db.nextID,
		users:         copyMap(db.users),
		admins:        copyMap(db.admins),
		adminLogs:     append([]models.AdminLog(nil), db.adminLogs...),
		tournaments:   copyMap(db.tournaments),
		bookings:      copyMap(db.bookings),
		keys:          copyMap(db.keys),
		notifications: copyMap(db.notifications),
		inbox:         copyMap(db.inbox),
		contacts:      copyMap(db.contacts),
		settings:      copyMap(db.settings),
		leaderboard:   copyMap(db.leaderboard),
		blogs:         copyMap(db.blogs),
	}
}

func (db *memDB) restore(s memSnapshot) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.nextID = s.nextID
	db.users = s.users
	db.admins = s.admins
	db.adminLogs = s.adminLogs
	db.tournaments = s.tournaments
	db.bookings = s.bookings
	db.keys = s.keys
	db.notifications = s.notifications
	db.inbox = s.inbox
	db.contacts = s.contacts
	db.settings = s.settings
	db.leaderboard = s.leaderboard
	db.blogs = s.blogs
}

// Transactor

type memTransactor struct {
	db *memDB
}

func (t *memTransactor) WithinTx(_ context.Context, fn func(exec repositories.SQLExecutor) error) error {
	t.db.txMu.Lock()
	defer t.db.txMu.Unlock()

	snap := t.db.snapshot()
	if err := fn(nil); err != nil {
		t.db.restore(snap)
		return err
	}
	return nil
}

// Tournaments

type memTournamentRepo struct{ db *memDB }

func (r *memTournamentRepo) Create(_ context.Context, t *models.Tournament) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.fail("tournaments.Create"); err != nil {
		return err
	}
	t.ID = r.db.id()
	t.CreatedAt = time.Now().UTC()
	if t.SlotList == nil {
		t.SlotList = []string{}
	}
	r.db.tournaments[t.ID] = *t
	return nil
}

func (r *memTournamentRepo) get(id int) (*models.Tournament, error) {
	t, ok := r.db.tournaments[id]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	t.SlotList = append([]string{}, t.SlotList...)
	return &t, nil
}

func (r *memTournamentRepo) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Tournament, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.get(id)
}

func (r *memTournamentRepo) GetForUpdate(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Tournament, error) {
	return r.GetByID(ctx, exec, id)
}

func (r *memTournamentRepo) List(_ context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	list := make([]models.Tournament, 0)
	for _, t := range r.db.tournaments {
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		if filter.Category != nil && t.Category != *filter.Category {
			continue
		}
		list = append(list, t)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	return page(list, filter.Limit, filter.Offset), nil
}

func (r *memTournamentRepo) Delete(_ context.Context, id int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.tournaments[id]; !ok {
		return repositories.ErrTournamentNotFound
	}
	delete(r.db.tournaments, id)
	return nil
}

func (r *memTournamentRepo) ReserveSlot(_ context.Context, _ repositories.SQLExecutor, id int, label string) (*models.Tournament, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	t, err := r.get(id)
	if err != nil {
		return nil, err
	}
	if t.FilledSlots >= t.TotalSlots {
		return nil, repositories.ErrTournamentNoCapacity
	}
	t.FilledSlots++
	t.SlotList = append(t.SlotList, label)
	r.db.tournaments[id] = *t
	return r.get(id)
}

func (r *memTournamentRepo) update(id int, fn func(t *models.Tournament)) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	t, err := r.get(id)
	if err != nil {
		return err
	}
	fn(t)
	r.db.tournaments[id] = *t
	return nil
}

func (r *memTournamentRepo) ReplaceSlotList(_ context.Context, _ repositories.SQLExecutor, id int, entries []string) error {
	return r.update(id, func(t *models.Tournament) {
		t.SlotList = append([]string{}, entries...)
		t.FilledSlots = len(entries)
	})
}

func (r *memTournamentRepo) UpdateStatus(_ context.Context, _ repositories.SQLExecutor, id int, status models.TournamentStatus) error {
	return r.update(id, func(t *models.Tournament) { t.Status = status })
}

func (r *memTournamentRepo) UpdateRoom(_ context.Context, _ repositories.SQLExecutor, id int, roomID, password string) error {
	return r.update(id, func(t *models.Tournament) {
		t.RoomID, t.RoomPassword, t.Status = roomID, password, models.StatusIDReleased
	})
}

func (r *memTournamentRepo) UpdateResults(_ context.Context, _ repositories.SQLExecutor, id int, results models.TournamentResults, winnersDeclared bool) error {
	return r.update(id, func(t *models.Tournament) {
		if results.PointsTableURL != "" {
			t.Results.PointsTableURL = results.PointsTableURL
		}
		if results.GraphicURL != "" {
			t.Results.GraphicURL = results.GraphicURL
		}
		t.Status = models.StatusCompleted
		if winnersDeclared {
			now := time.Now().UTC()
			t.WinnersDeclaredAt = &now
		}
	})
}

func (r *memTournamentRepo) Cancel(_ context.Context, _ repositories.SQLExecutor, id int) error {
	return r.update(id, func(t *models.Tournament) {
		t.Status = models.StatusCancelled
		t.SlotList = []string{}
		t.FilledSlots = 0
	})
}

func (r *memTournamentRepo) CountByStatus(_ context.Context, status *models.TournamentStatus) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	n := 0
	for _, t := range r.db.tournaments {
		if status == nil || t.Status == *status {
			n++
		}
	}
	return n, nil
}

// Bookings

type memBookingRepo struct{ db *memDB }

func (r *memBookingRepo) Create(_ context.Context, b *models.Booking) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.tournaments[b.TournamentID]; !ok {
		return repositories.ErrBookingInvalidReference
	}
	now := time.Now().UTC()
	b.ID = r.db.id()
	b.CreatedAt, b.UpdatedAt = now, now
	r.db.bookings[b.ID] = *b
	return nil
}

func (r *memBookingRepo) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Booking, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	b, ok := r.db.bookings[id]
	if !ok {
		return nil, repositories.ErrBookingNotFound
	}
	return &b, nil
}

func (r *memBookingRepo) GetForUpdate(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Booking, error) {
	return r.GetByID(ctx, exec, id)
}

func (r *memBookingRepo) List(_ context.Context, _ repositories.SQLExecutor, filter repositories.ListBookingsFilter) ([]models.Booking, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.fail("bookings.List"); err != nil {
		return nil, err
	}
	list := make([]models.Booking, 0)
	for _, b := range r.db.bookings {
		if filter.TournamentID != nil && b.TournamentID != *filter.TournamentID {
			continue
		}
		if filter.UserID != nil && b.UserID != *filter.UserID {
			continue
		}
		if len(filter.Statuses) > 0 && !hasStatus(filter.Statuses, b.Status) {
			continue
		}
		list = append(list, b)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	return page(list, filter.Limit, filter.Offset), nil
}

func hasStatus(statuses []models.BookingStatus, s models.BookingStatus) bool {
	for _, st := range statuses {
		if st == s {
			return true
		}
	}
	return false
}

func (r *memBookingRepo) Apply(_ context.Context, _ repositories.SQLExecutor, id int, upd repositories.BookingUpdate) (*models.Booking, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.fail("bookings.Apply"); err != nil {
		return nil, err
	}
	b, ok := r.db.bookings[id]
	if !ok {
		return nil, repositories.ErrBookingNotFound
	}
	b.Status = upd.Status
	if upd.SlotLabel != nil {
		b.SlotLabel = *upd.SlotLabel
	}
	if upd.AdminMessage != nil {
		b.AdminMessage = *upd.AdminMessage
	}
	if upd.MessageTime != nil {
		b.MessageTime = upd.MessageTime
	}
	if upd.PrizeAmount != nil {
		b.PrizeAmount = *upd.PrizeAmount
	}
	if upd.PrizeRank != nil {
		b.PrizeRank = upd.PrizeRank
	}
	if upd.UserQR != nil {
		b.UserQR = *upd.UserQR
	}
	if upd.PaymentProof != nil {
		b.PaymentProof = *upd.PaymentProof
	}
	if upd.PaidAt != nil {
		b.PaidAt = upd.PaidAt
	}
	b.UpdatedAt = time.Now().UTC()
	r.db.bookings[id] = b
	return &b, nil
}

func (r *memBookingRepo) CountByStatus(_ context.Context, statuses []models.BookingStatus) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	n := 0
	for _, b := range r.db.bookings {
		if hasStatus(statuses, b.Status) {
			n++
		}
	}
	return n, nil
}

func (r *memBookingRepo) CountOccupyingByTournament(_ context.Context) (map[int]int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	counts := map[int]int{}
	for _, b := range r.db.bookings {
		if b.Status.OccupiesSlot() {
			counts[b.TournamentID]++
		}
	}
	return counts, nil
}

// Transition keys

type memKeyRepo struct{ db *memDB }

func (r *memKeyRepo) Claim(_ context.Context, _ repositories.SQLExecutor, key, scope string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if stored, used := r.db.keys[key]; used {
		if stored != scope {
			return repositories.ErrTransitionKeyReused
		}
		return repositories.ErrTransitionKeyAlreadyUsed
	}
	r.db.keys[key] = scope
	return nil
}

// Notifications

type memNotificationRepo struct{ db *memDB }

func (r *memNotificationRepo) CreateBatch(_ context.Context, _ repositories.SQLExecutor, items []*models.Notification) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.fail("notifications.CreateBatch"); err != nil {
		return err
	}
	for _, n := range items {
		n.ID = r.db.id()
		n.CreatedAt = time.Now().UTC()
		r.db.notifications[n.ID] = *n
	}
	return nil
}

func (r *memNotificationRepo) CreateInboxBatch(_ context.Context, _ repositories.SQLExecutor, items []*models.InboxEntry) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, e := range items {
		e.ID = r.db.id()
		e.CreatedAt = time.Now().UTC()
		r.db.inbox[e.ID] = *e
	}
	return nil
}

func (r *memNotificationRepo) ListByUser(_ context.Context, userID int, limit int) ([]models.Notification, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	list := make([]models.Notification, 0)
	for _, n := range r.db.notifications {
		if n.UserID == userID {
			list = append(list, n)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	return page(list, limit, 0), nil
}

func (r *memNotificationRepo) MarkRead(_ context.Context, userID, id int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	n, ok := r.db.notifications[id]
	if !ok || n.UserID != userID {
		return repositories.ErrNotificationNotFound
	}
	n.Read = true
	r.db.notifications[id] = n
	return nil
}

func (r *memNotificationRepo) ListInbox(_ context.Context, userID int, limit int) ([]models.InboxEntry, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	list := make([]models.InboxEntry, 0)
	for _, e := range r.db.inbox {
		if e.UserID == userID {
			list = append(list, e)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	return page(list, limit, 0), nil
}

func (r *memNotificationRepo) MarkInboxRead(_ context.Context, userID, id int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	e, ok := r.db.inbox[id]
	if !ok || e.UserID != userID {
		return repositories.ErrInboxEntryNotFound
	}
	e.Read = true
	r.db.inbox[id] = e
	return nil
}

func (r *memNotificationRepo) CountUnreadInbox(_ context.Context, userID int) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	n := 0
	for _, e := range r.db.inbox {
		if e.UserID == userID && !e.Read {
			n++
		}
	}
	return n, nil
}

func (r *memNotificationRepo) DeleteReadBefore(_ context.Context, before time.Time) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var removed int64
	for id, n := range r.db.notifications {
		if n.Read && n.CreatedAt.Before(before) {
			delete(r.db.notifications, id)
			removed++
		}
	}
	return removed, nil
}

// Users

type memUserRepo struct{ db *memDB }

func (r *memUserRepo) Create(_ context.Context, _ repositories.SQLExecutor, u *models.User) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	email := strings.ToLower(strings.TrimSpace(u.Email))
	for _, existing := range r.db.users {
		if existing.Email == email {
			return repositories.ErrUserEmailConflict
		}
	}
	u.ID = r.db.id()
	u.Email = email
	u.CreatedAt = time.Now().UTC()
	r.db.users[u.ID] = *u
	return nil
}

func (r *memUserRepo) GetByID(_ context.Context, id int) (*models.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	return &u, nil
}

func (r *memUserRepo) GetByEmail(_ context.Context, _ repositories.SQLExecutor, email string) (*models.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range r.db.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (r *memUserRepo) UpdateLastLogin(_ context.Context, id int, at time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[id]
	if !ok {
		return repositories.ErrUserNotFound
	}
	u.LastLogin = &at
	r.db.users[id] = u
	return nil
}

func (r *memUserRepo) UpdatePassword(_ context.Context, _ repositories.SQLExecutor, id int, passwordHash string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[id]
	if !ok {
		return repositories.ErrUserNotFound
	}
	u.PasswordHash = passwordHash
	r.db.users[id] = u
	return nil
}

func (r *memUserRepo) List(_ context.Context, limit, offset int) ([]models.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	list := make([]models.User, 0, len(r.db.users))
	for _, u := range r.db.users {
		list = append(list, u)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return page(list, limit, offset), nil
}

func (r *memUserRepo) Count(_ context.Context) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return len(r.db.users), nil
}

// Admins

type memAdminRepo struct{ db *memDB }

func (r *memAdminRepo) Create(_ context.Context, _ repositories.SQLExecutor, a *models.Admin) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.admins {
		if existing.Email == a.Email {
			return repositories.ErrAdminEmailConflict
		}
	}
	a.ID = r.db.id()
	a.CreatedAt = time.Now().UTC()
	r.db.admins[a.ID] = *a
	return nil
}

func (r *memAdminRepo) GetByEmail(_ context.Context, email string) (*models.Admin, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.fail("admins.GetByEmail"); err != nil {
		return nil, err
	}
	email = strings.ToLower(strings.TrimSpace(email))
	for _, a := range r.db.admins {
		if a.Email == email {
			return &a, nil
		}
	}
	return nil, repositories.ErrAdminNotFound
}

func (r *memAdminRepo) List(_ context.Context) ([]models.Admin, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	list := make([]models.Admin, 0, len(r.db.admins))
	for _, a := range r.db.admins {
		list = append(list, a)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (r *memAdminRepo) Delete(_ context.Context, id int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.admins[id]; !ok {
		return repositories.ErrAdminNotFound
	}
	delete(r.db.admins, id)
	return nil
}

func (r *memAdminRepo) CreateLog(_ context.Context, entry *models.AdminLog) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.fail("admins.CreateLog"); err != nil {
		return err
	}
	entry.ID = r.db.id()
	entry.CreatedAt = time.Now().UTC()
	r.db.adminLogs = append(r.db.adminLogs, *entry)
	return nil
}

func (r *memAdminRepo) ListLogs(_ context.Context, limit int) ([]models.AdminLog, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	list := make([]models.AdminLog, 0, len(r.db.adminLogs))
	for i := len(r.db.adminLogs) - 1; i >= 0; i-- {
		list = append(list, r.db.adminLogs[i])
	}
	return page(list, limit, 0), nil
}

// Contact

type memContactRepo struct{ db *memDB }

func (r *memContactRepo) Create(_ context.Context, msg *models.ContactMessage) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	msg.ID = r.db.id()
	msg.CreatedAt = time.Now().UTC()
	r.db.contacts[msg.ID] = *msg
	return nil
}

func (r *memContactRepo) GetByID(_ context.Context, id int) (*models.ContactMessage, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	msg, ok := r.db.contacts[id]
	if !ok {
		return nil, repositories.ErrContactMessageNotFound
	}
	return &msg, nil
}

func (r *memContactRepo) List(_ context.Context, filter repositories.ListContactFilter) ([]models.ContactMessage, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	list := make([]models.ContactMessage, 0)
	for _, msg := range r.db.contacts {
		if filter.UserID != nil && (msg.UserID == nil || *msg.UserID != *filter.UserID) {
			continue
		}
		if filter.Status != nil && msg.Status != *filter.Status {
			continue
		}
		list = append(list, msg)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	return page(list, filter.Limit, 0), nil
}

func (r *memContactRepo) SetReply(_ context.Context, _ repositories.SQLExecutor, id int, reply string, at time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	msg, ok := r.db.contacts[id]
	if !ok {
		return repositories.ErrContactMessageNotFound
	}
	msg.Status = models.ContactReplied
	msg.AdminReply = reply
	msg.RepliedAt = &at
	r.db.contacts[id] = msg
	return nil
}

func (r *memContactRepo) Delete(_ context.Context, id int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.contacts[id]; !ok {
		return repositories.ErrContactMessageNotFound
	}
	delete(r.db.contacts, id)
	return nil
}

func (r *memContactRepo) CountByStatus(_ context.Context, status models.ContactStatus) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	n := 0
	for _, msg := range r.db.contacts {
		if msg.Status == status {
			n++
		}
	}
	return n, nil
}

// Settings

type memSettingsRepo struct{ db *memDB }

func (r *memSettingsRepo) Get(_ context.Context, key string, dst interface{}) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	raw, ok := r.db.settings[key]
	if !ok {
		return repositories.ErrSettingNotFound
	}
	return json.Unmarshal(raw, dst)
}

func (r *memSettingsRepo) Put(_ context.Context, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.settings[key] = raw
	return nil
}

func (r *memSettingsRepo) editArray(key, field string, create bool, fn func([]string) []string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	doc := map[string]json.RawMessage{}
	raw, ok := r.db.settings[key]
	if !ok && !create {
		return repositories.ErrSettingNotFound
	}
	if ok {
		if err := json.Unmarshal(raw, &doc); err != nil {
			return err
		}
	}
	var values []string
	if rawField, ok := doc[field]; ok {
		if err := json.Unmarshal(rawField, &values); err != nil {
			return err
		}
	}
	encoded, err := json.Marshal(fn(values))
	if err != nil {
		return err
	}
	doc[field] = encoded
	out, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	r.db.settings[key] = out
	return nil
}

func (r *memSettingsRepo) AppendUnique(_ context.Context, key, field, value string) error {
	return r.editArray(key, field, true, func(values []string) []string {
		for _, v := range values {
			if v == value {
				return values
			}
		}
		return append(values, value)
	})
}

func (r *memSettingsRepo) RemoveValue(_ context.Context, key, field, value string) error {
	return r.editArray(key, field, false, func(values []string) []string {
		out := make([]string, 0, len(values))
		for _, v := range values {
			if v != value {
				out = append(out, v)
			}
		}
		return out
	})
}

// Leaderboard

type memLeaderboardRepo struct{ db *memDB }

func (r *memLeaderboardRepo) Upsert(_ context.Context, e *models.LeaderboardEntry) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for id, existing := range r.db.leaderboard {
		if existing.TeamName == e.TeamName {
			e.ID = id
		}
	}
	if e.ID == 0 {
		e.ID = r.db.id()
	}
	e.UpdatedAt = time.Now().UTC()
	r.db.leaderboard[e.ID] = *e
	return nil
}

func (r *memLeaderboardRepo) ListTop(_ context.Context, limit int) ([]models.LeaderboardEntry, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	list := make([]models.LeaderboardEntry, 0, len(r.db.leaderboard))
	for _, e := range r.db.leaderboard {
		list = append(list, e)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Points != list[j].Points {
			return list[i].Points > list[j].Points
		}
		return list[i].ID < list[j].ID
	})
	return page(list, limit, 0), nil
}

func (r *memLeaderboardRepo) GetByIDs(_ context.Context, ids []int) ([]models.LeaderboardEntry, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	list := make([]models.LeaderboardEntry, 0, len(ids))
	for _, id := range ids {
		if e, ok := r.db.leaderboard[id]; ok {
			list = append(list, e)
		}
	}
	return list, nil
}

func (r *memLeaderboardRepo) Delete(_ context.Context, id int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.leaderboard[id]; !ok {
		return repositories.ErrLeaderboardEntryNotFound
	}
	delete(r.db.leaderboard, id)
	return nil
}

// Blog

type memBlogRepo struct{ db *memDB }

func (r *memBlogRepo) Create(_ context.Context, p *models.BlogPost) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.blogs {
		if existing.Slug == p.Slug {
			return repositories.ErrBlogSlugConflict
		}
	}
	p.ID = r.db.id()
	p.CreatedAt = time.Now().UTC()
	r.db.blogs[p.ID] = *p
	return nil
}

func (r *memBlogRepo) GetBySlug(_ context.Context, slug string) (*models.BlogPost, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, p := range r.db.blogs {
		if p.Slug == slug {
			return &p, nil
		}
	}
	return nil, repositories.ErrBlogPostNotFound
}

func (r *memBlogRepo) SlugExists(_ context.Context, slug string) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, p := range r.db.blogs {
		if p.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (r *memBlogRepo) List(_ context.Context, limit int) ([]models.BlogPost, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	list := make([]models.BlogPost, 0, len(r.db.blogs))
	for _, p := range r.db.blogs {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	return page(list, limit, 0), nil
}

func (r *memBlogRepo) Delete(_ context.Context, id int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.blogs[id]; !ok {
		return repositories.ErrBlogPostNotFound
	}
	delete(r.db.blogs, id)
	return nil
}

func page[T any](list []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(list) {
			return list[:0]
		}
		list = list[offset:]
	}
	if limit > 0 && limit < len(list) {
		list = list[:limit]
	}
	return list
}

// Storage

type memUploader struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
	failErr error
}

func newMemUploader() *memUploader {
	return &memUploader{objects: map[string][]byte{}}
}

func (u *memUploader) Upload(_ context.Context, key string, _ string, reader io.Reader) (*storage.UploadResult, error) {
	if u.failErr != nil {
		return nil, u.failErr
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.objects[key] = data
	return &storage.UploadResult{Key: key}, nil
}

func (u *memUploader) Delete(_ context.Context, key string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.objects, key)
	u.deleted = append(u.deleted, key)
	return nil
}

func (u *memUploader) GetPublicURL(key string) string {
	return "https://cdn.test/" + key
}

func (u *memUploader) count() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.objects)
}

func pngFile() *FileInput {
	return &FileInput{Reader: bytes.NewReader([]byte("\x89PNG fake")), ContentType: "image/png"}
}

// Live events

type publishedEvent struct {
	Room    string
	Type    string
	Payload interface{}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(room, eventType string, payload interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{Room: room, Type: eventType, Payload: payload})
}

func (p *recordingPublisher) inRoom(room string) []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []publishedEvent
	for _, e := range p.events {
		if e.Room == room {
			out = append(out, e)
		}
	}
	return out
}

// Metrics

type recordingMetrics struct {
	mu            sync.Mutex
	transitions   map[string]int
	drift         map[int]int
	notifications int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{transitions: map[string]int{}, drift: map[int]int{}}
}

func (m *recordingMetrics) BookingTransition(event, to string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions[event+"->"+to]++
}

func (m *recordingMetrics) SlotDrift(tournamentID int, drift int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drift[tournamentID] = drift
}

func (m *recordingMetrics) NotificationsSent(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications += n
}

// Redis

type memCache struct {
	mu      sync.Mutex
	sets    map[string]map[string]float64
	failErr error
}

func newMemCache() *memCache {
	return &memCache{sets: map[string]map[string]float64{}}
}

func (c *memCache) Exist(_ context.Context, key string) (bool, error) {
	if c.failErr != nil {
		return false, c.failErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.sets[key]
	return ok, nil
}

func (c *memCache) Del(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sets, key)
	return nil
}

func (c *memCache) ZAdd(_ context.Context, key string, members ...redis.Z) error {
	if c.failErr != nil {
		return c.failErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	set, ok := c.sets[key]
	if !ok {
		set = map[string]float64{}
		c.sets[key] = set
	}
	for _, m := range members {
		set[fmt.Sprint(m.Member)] = m.Score
	}
	return nil
}

func (c *memCache) ZRem(_ context.Context, key string, member string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sets[key], member)
	return nil
}

func (c *memCache) ZRevRangeWithScores(_ context.Context, key string, offset, limit int) ([]redis.Z, error) {
	if c.failErr != nil {
		return nil, c.failErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	zs := make([]redis.Z, 0, len(c.sets[key]))
	for member, score := range c.sets[key] {
		zs = append(zs, redis.Z{Score: score, Member: member})
	}
	sort.Slice(zs, func(i, j int) bool {
		if zs[i].Score != zs[j].Score {
			return zs[i].Score > zs[j].Score
		}
		a, _ := strconv.Atoi(zs[i].Member.(string))
		b, _ := strconv.Atoi(zs[j].Member.(string))
		return a < b
	})
	return page(zs, limit, offset), nil
}

func (c *memCache) Close() error { return nil }

func (c *memCache) score(key, member string) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sets[key][member]
	return s, ok
}

// Env

var (
	superAdmin = models.Actor{UserID: 1000, Email: "owner@arena.test", Name: "Owner", Role: models.RoleSuperAdmin}
	subAdmin   = models.Actor{UserID: 1001, Email: "staff@arena.test", Name: "Staff", Role: models.RoleSubAdmin}
)

func playerActor(id int) models.Actor {
	return models.Actor{UserID: id, Email: "player" + strconv.Itoa(id) + "@arena.test", Name: "Player " + strconv.Itoa(id), Role: models.RolePlayer}
}

// testEnv собирает все сервисы поверх одного memDB.
type testEnv struct {
	db        *memDB
	uploader  *memUploader
	publisher *recordingPublisher
	metrics   *recordingMetrics

	tournamentRepo *memTournamentRepo
	bookingRepo    *memBookingRepo

	admin         AdminService
	notifications NotificationService
	bookings      BookingService
	tournaments   TournamentService
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv() *testEnv {
	db := newMemDB()
	env := &testEnv{
		db:             db,
		uploader:       newMemUploader(),
		publisher:      &recordingPublisher{},
		metrics:        newRecordingMetrics(),
		tournamentRepo: &memTournamentRepo{db: db},
		bookingRepo:    &memBookingRepo{db: db},
	}
	logger := discardLogger()
	tx := &memTransactor{db: db}
	keys := &memKeyRepo{db: db}
	users := &memUserRepo{db: db}

	env.admin = NewAdminService(&memAdminRepo{db: db}, users, tx, logger)
	env.notifications = NewNotificationService(&memNotificationRepo{db: db}, env.bookingRepo, users, env.publisher, env.metrics, env.admin, logger)
	env.bookings = NewBookingService(env.bookingRepo, env.tournamentRepo, keys, tx, env.notifications, env.uploader, env.admin, env.publisher, env.metrics, logger)
	env.tournaments = NewTournamentService(env.tournamentRepo, env.bookingRepo, keys, tx, env.notifications, env.uploader, env.admin, env.publisher, env.metrics, logger)
	return env
}

// seedTournament кладет турнир напрямую в хранилище.
func (e *testEnv) seedTournament(mutate func(t *models.Tournament)) *models.Tournament {
	t := &models.Tournament{
		Title:      "Evening Scrims",
		Category:   models.CategoryBR,
		Map:        "Bermuda",
		MatchCount: 1,
		Type:       "Squad",
		StartsAt:   time.Now().UTC().Add(2 * time.Hour),
		Fee:        50,
		Rank1Prize: 500,
		Rank2Prize: 300,
		Rank3Prize: 100,
		TotalSlots: 4,
		Status:     models.StatusOpen,
	}
	if mutate != nil {
		mutate(t)
	}
	if err := e.tournamentRepo.Create(context.Background(), t); err != nil {
		panic(err)
	}
	return t
}

func (e *testEnv) tournament(id int) models.Tournament {
	t, err := e.tournamentRepo.GetByID(context.Background(), nil, id)
	if err != nil {
		panic(err)
	}
	return *t
}

func (e *testEnv) booking(id int) models.Booking {
	b, err := e.bookingRepo.GetByID(context.Background(), nil, id)
	if err != nil {
		panic(err)
	}
	return *b
}

func (e *testEnv) submit(userID, tournamentID int, name string) (*models.Booking, error) {
	return e.bookings.Submit(context.Background(), playerActor(userID), tournamentID, SubmitBookingInput{
		PlayerName: name,
		GameUID:    strconv.Itoa(100000 + userID),
		Whatsapp:   "+9198765" + strconv.Itoa(10000+userID),
	}, pngFile())
}

func (e *testEnv) userNotifications(userID int) []models.Notification {
	e.db.mu.Lock()
	defer e.db.mu.Unlock()
	var out []models.Notification
	for _, n := range e.db.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (e *testEnv) userInbox(userID int) []models.InboxEntry {
	e.db.mu.Lock()
	defer e.db.mu.Unlock()
	var out []models.InboxEntry
	for _, n := range e.db.inbox {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}
