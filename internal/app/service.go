package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"snipshelf/internal/auth"
	"snipshelf/internal/authpw"
	"snipshelf/internal/cache"
	"snipshelf/internal/config"
	"snipshelf/internal/email"
	"snipshelf/internal/export"
	"snipshelf/internal/ordering"
	"snipshelf/internal/rbac"
	"snipshelf/internal/search"
	"snipshelf/internal/store"
	"snipshelf/internal/util"
)

type Session struct {
	Token     string
	UserID    string
	UserName  string
	ExpiresAt time.Time
}

type dataStore interface {
	Ping(context.Context) error
	GetUserByEmail(context.Context, string) (store.User, error)
	GetUserByID(context.Context, string) (store.User, error)
	CreateUser(context.Context, store.User) error
	InsertFolder(context.Context, store.Folder) error
	GetFolder(context.Context, string) (store.Folder, error)
	ListFoldersForUser(context.Context, string) ([]store.Folder, error)
	ShareFolder(context.Context, store.FolderShare) error
	FolderRole(context.Context, string, string) (string, error)
	GetItem(context.Context, string) (store.Item, error)
	ListScopeItems(context.Context, ordering.Scope) ([]store.Item, error)
	UpdateItemBody(context.Context, string, string) (bool, error)
	DeleteItem(context.Context, string) (bool, error)
	RunInTx(context.Context, func(store.ScopeTx) error) error
	BatchWriter() ordering.Writer
}

// recorder is the slice of metrics.Metrics the service reports to.
type recorder interface {
	ObservePlan(updates int)
	ObserveInsertAttempt(outcome string)
	ObserveScopeCache(hit bool)
}

type nopRecorder struct{}

func (nopRecorder) ObservePlan(int)             {}
func (nopRecorder) ObserveInsertAttempt(string) {}
func (nopRecorder) ObserveScopeCache(bool)      {}

// shareNotifier tells a user they were granted access to a folder.
type shareNotifier interface {
	SendShareNotice(notice email.ShareNotice)
}

// Deps are the collaborators of a Service. Only Store is required.
type Deps struct {
	Store    dataStore
	Cache    cache.ScopeCache
	Search   *search.Service
	Export   *export.Service
	Migrator *ordering.Migrator
	Metrics  recorder
	Notifier shareNotifier
}

type Service struct {
	cfg      config.Config
	store    dataStore
	cache    cache.ScopeCache
	search   *search.Service
	exporter *export.Service
	authpw   *authpw.Service
	migrator *ordering.Migrator
	metrics  recorder
	notifier shareNotifier
	backoff  func() backoff.BackOff
}

func New(cfg config.Config, deps Deps) *Service {
	s := &Service{
		cfg:      cfg,
		store:    deps.Store,
		cache:    deps.Cache,
		search:   deps.Search,
		exporter: deps.Export,
		authpw:   authpw.NewService(deps.Store),
		migrator: deps.Migrator,
		metrics:  deps.Metrics,
		notifier: deps.Notifier,
		backoff:  defaultBackOff,
	}
	if s.cache == nil {
		s.cache = cache.Nop{}
	}
	if s.migrator == nil {
		s.migrator = ordering.NewMigrator()
	}
	if s.metrics == nil {
		s.metrics = nopRecorder{}
	}
	if s.exporter == nil {
		s.exporter = export.NewService(deps.Store, nil)
	}
	return s
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	return b
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) SignUp(ctx context.Context, address, password, displayName string) (store.User, error) {
	user, err := s.authpw.SignUp(ctx, authpw.SignUpRequest{Email: address, Password: password, DisplayName: displayName})
	if err != nil {
		return store.User{}, err
	}
	return user, nil
}

func (s *Service) SignIn(ctx context.Context, address, password string) (Session, error) {
	user, err := s.authpw.SignIn(ctx, authpw.SignInRequest{Email: address, Password: password})
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(user)
}

func (s *Service) issueSession(user store.User) (Session, error) {
	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), user.ID, user.DisplayName, s.cfg.AccessTTL)
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		ExpiresAt: time.Now().Add(s.cfg.AccessTTL),
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	session := Session{Token: token, UserID: claims.Subject, UserName: claims.Name}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}
	return session, nil
}

// authorize resolves the caller's role on a folder and checks action against it.
// Callers with no role at all get a 404 so folder ids are not probeable.
func (s *Service) authorize(ctx context.Context, folderID, userID string, action rbac.Action) (rbac.Role, error) {
	raw, err := s.store.FolderRole(ctx, folderID, userID)
	if err != nil {
		if store.IsNotFound(err) {
			return "", errFolderNotFound
		}
		return "", fmt.Errorf("resolve folder role: %w", err)
	}
	role := rbac.Normalize(raw)
	if role == "" {
		return "", errFolderNotFound
	}
	if !rbac.Can(role, action) {
		return role, errForbidden
	}
	return role, nil
}

// authorizeScope checks write access to a scope. Only the folder owner may
// change another user's items.
func (s *Service) authorizeScope(ctx context.Context, scope ordering.Scope, userID string) error {
	role, err := s.authorize(ctx, scope.FolderID, userID, rbac.ActionWrite)
	if err != nil {
		return err
	}
	if scope.OwnerID != userID && role != rbac.RoleOwner {
		return errForbidden
	}
	return nil
}

func (s *Service) ListFolders(ctx context.Context, session Session) ([]store.Folder, error) {
	return s.store.ListFoldersForUser(ctx, session.UserID)
}

func (s *Service) CreateFolder(ctx context.Context, session Session, name string) (store.Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return store.Folder{}, validationError("name is required")
	}
	folder := store.Folder{ID: util.NewID("fld"), OwnerID: session.UserID, Name: name}
	if err := s.store.InsertFolder(ctx, folder); err != nil {
		return store.Folder{}, err
	}
	return s.store.GetFolder(ctx, folder.ID)
}

func (s *Service) ShareFolder(ctx context.Context, session Session, folderID, address, role string) (store.FolderShare, error) {
	if _, err := s.authorize(ctx, folderID, session.UserID, rbac.ActionShare); err != nil {
		return store.FolderShare{}, err
	}
	shareRole := rbac.Normalize(strings.ToLower(strings.TrimSpace(role)))
	if !rbac.Shareable(shareRole) {
		return store.FolderShare{}, validationError("role must be viewer or editor")
	}
	user, err := s.store.GetUserByEmail(ctx, address)
	if err != nil {
		if store.IsNotFound(err) {
			return store.FolderShare{}, domainError(http.StatusNotFound, "USER_NOT_FOUND", "No user with that email", nil)
		}
		return store.FolderShare{}, err
	}
	if user.ID == session.UserID {
		return store.FolderShare{}, validationError("cannot share a folder with its owner")
	}
	share := store.FolderShare{FolderID: folderID, UserID: user.ID, Role: string(shareRole), GrantedBy: session.UserID}
	if err := s.store.ShareFolder(ctx, share); err != nil {
		return store.FolderShare{}, err
	}

	if s.notifier != nil {
		if folder, err := s.store.GetFolder(ctx, folderID); err == nil {
			s.notifier.SendShareNotice(email.ShareNotice{
				To:         user.Email,
				FolderName: folder.Name,
				SharedBy:   session.UserName,
				Role:       share.Role,
			})
		}
	}
	return share, nil
}

// ListItems returns a scope in display order. Legacy rows are backfilled
// through the batch writer on the way; a failed backfill does not fail the read.
func (s *Service) ListItems(ctx context.Context, session Session, folderID, ownerID string) ([]store.Item, error) {
	if ownerID == "" {
		ownerID = session.UserID
	}
	if _, err := s.authorize(ctx, folderID, session.UserID, rbac.ActionRead); err != nil {
		return nil, err
	}
	return s.readScope(ctx, ordering.Scope{FolderID: folderID, OwnerID: ownerID})
}

func (s *Service) readScope(ctx context.Context, scope ordering.Scope) ([]store.Item, error) {
	cached, ok, err := s.cache.Get(ctx, scope)
	if err != nil {
		log.Printf("cache: get %s: %v", scope, err)
	}
	s.metrics.ObserveScopeCache(ok)
	if ok {
		return cached, nil
	}

	raw, err := s.store.ListScopeItems(ctx, scope)
	if err != nil {
		return nil, err
	}
	normalized := s.migrator.MigrateIfNeeded(ctx, store.Ordered(raw), s.store.BatchWriter())
	items := store.FromOrdered(normalized)

	if err := s.cache.Set(ctx, scope, items); err != nil {
		log.Printf("cache: set %s: %v", scope, err)
	}
	return items, nil
}

// CreateItem adds an item to the caller's scope in folderID, directly after
// afterID, or at the end when afterID is empty.
func (s *Service) CreateItem(ctx context.Context, session Session, folderID, body, afterID string) (store.Item, error) {
	if strings.TrimSpace(body) == "" {
		return store.Item{}, validationError("body is required")
	}
	scope := ordering.Scope{FolderID: folderID, OwnerID: session.UserID}
	if err := s.authorizeScope(ctx, scope, session.UserID); err != nil {
		return store.Item{}, err
	}

	now := time.Now().UTC()
	item := store.Item{
		ID:        util.NewID("itm"),
		FolderID:  folderID,
		OwnerID:   session.UserID,
		Body:      body,
		CreatedAt: now,
		UpdatedAt: now,
	}
	created, err := s.retryScopeTx(ctx, scope, func(tx store.ScopeTx) (store.Item, error) {
		raw, err := tx.LockScope(ctx, scope)
		if err != nil {
			return store.Item{}, err
		}
		stored := store.Ordered(raw)
		normalized := normalizeLogged(stored, scope)

		plan, err := ordering.PlanInsertAfter(normalized, afterID)
		if err != nil {
			return store.Item{}, err
		}
		s.metrics.ObservePlan(len(plan.Updates))

		if err := tx.Writer().ApplyOrdinals(ctx, scope, ordering.Diff(stored, plan.Apply(normalized))); err != nil {
			return store.Item{}, err
		}
		inserted := item
		inserted.SeqNo = ordering.KeyOf(plan.InsertKey)
		if err := tx.InsertItem(ctx, inserted); err != nil {
			return store.Item{}, err
		}
		return inserted, nil
	})
	if err != nil {
		return store.Item{}, err
	}

	s.afterWrite(ctx, scope)
	if s.search != nil {
		s.search.IndexItem(created)
	}
	return created, nil
}

// MoveItem places an existing item directly after afterID within its scope.
// Moving an item after itself changes nothing.
func (s *Service) MoveItem(ctx context.Context, session Session, itemID, afterID string) (store.Item, error) {
	item, err := s.store.GetItem(ctx, itemID)
	if err != nil {
		if store.IsNotFound(err) {
			return store.Item{}, errItemNotFound
		}
		return store.Item{}, err
	}
	scope := item.Scope()
	if err := s.authorizeScope(ctx, scope, session.UserID); err != nil {
		return store.Item{}, err
	}
	if afterID == itemID {
		return item, nil
	}

	moved, err := s.retryScopeTx(ctx, scope, func(tx store.ScopeTx) (store.Item, error) {
		raw, err := tx.LockScope(ctx, scope)
		if err != nil {
			return store.Item{}, err
		}
		stored := store.Ordered(raw)
		normalized := normalizeLogged(stored, scope)

		var target *ordering.Item
		remainder := make([]ordering.Item, 0, len(normalized))
		for i := range normalized {
			if normalized[i].ID == itemID {
				target = &normalized[i]
				continue
			}
			remainder = append(remainder, normalized[i])
		}
		if target == nil {
			return store.Item{}, errItemNotFound
		}
		remainder = ordering.Normalize(remainder)

		plan, err := ordering.PlanInsertAfter(remainder, afterID)
		if err != nil {
			return store.Item{}, err
		}
		s.metrics.ObservePlan(len(plan.Updates))

		placed := *target
		placed.Key = ordering.KeyOf(plan.InsertKey)
		final := append(plan.Apply(remainder), placed)
		if err := tx.Writer().ApplyOrdinals(ctx, scope, ordering.Diff(stored, final)); err != nil {
			return store.Item{}, err
		}
		return store.FromOrdered([]ordering.Item{placed})[0], nil
	})
	if err != nil {
		return store.Item{}, err
	}

	s.afterWrite(ctx, scope)
	return moved, nil
}

func (s *Service) UpdateItem(ctx context.Context, session Session, itemID, body string) (store.Item, error) {
	if strings.TrimSpace(body) == "" {
		return store.Item{}, validationError("body is required")
	}
	item, err := s.store.GetItem(ctx, itemID)
	if err != nil {
		if store.IsNotFound(err) {
			return store.Item{}, errItemNotFound
		}
		return store.Item{}, err
	}
	if err := s.authorizeScope(ctx, item.Scope(), session.UserID); err != nil {
		return store.Item{}, err
	}
	updated, err := s.store.UpdateItemBody(ctx, itemID, body)
	if err != nil {
		return store.Item{}, err
	}
	if !updated {
		return store.Item{}, errItemNotFound
	}
	item, err = s.store.GetItem(ctx, itemID)
	if err != nil {
		return store.Item{}, err
	}

	s.afterWrite(ctx, item.Scope())
	if s.search != nil {
		s.search.IndexItem(item)
	}
	return item, nil
}

// DeleteItem removes an item. The keys of the remaining items are left as
// they are; reads normalize the gap away.
func (s *Service) DeleteItem(ctx context.Context, session Session, itemID string) error {
	item, err := s.store.GetItem(ctx, itemID)
	if err != nil {
		if store.IsNotFound(err) {
			return errItemNotFound
		}
		return err
	}
	if err := s.authorizeScope(ctx, item.Scope(), session.UserID); err != nil {
		return err
	}
	deleted, err := s.store.DeleteItem(ctx, itemID)
	if err != nil {
		return err
	}
	if !deleted {
		return errItemNotFound
	}

	s.afterWrite(ctx, item.Scope())
	if s.search != nil {
		s.search.DeleteItem(itemID)
	}
	return nil
}

func (s *Service) ExportFolder(ctx context.Context, session Session, folderID, ownerID, format string) (*export.Result, error) {
	if ownerID == "" {
		ownerID = session.UserID
	}
	if _, err := s.authorize(ctx, folderID, session.UserID, rbac.ActionRead); err != nil {
		return nil, err
	}
	parsed, err := export.ParseFormat(strings.ToLower(strings.TrimSpace(format)))
	if err != nil {
		return nil, validationError("format must be markdown or json")
	}
	folder, err := s.store.GetFolder(ctx, folderID)
	if err != nil {
		return nil, err
	}
	ownerName := ""
	if owner, err := s.store.GetUserByID(ctx, ownerID); err == nil {
		ownerName = owner.DisplayName
	}
	return s.exporter.Export(ctx, export.Request{
		Scope:      ordering.Scope{FolderID: folderID, OwnerID: ownerID},
		FolderName: folder.Name,
		OwnerName:  ownerName,
		Format:     parsed,
	})
}

// Search looks for text in every folder the caller can read, or only in
// folderID when it is set.
func (s *Service) Search(ctx context.Context, session Session, text, folderID string, limit, offset int) (search.Response, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return search.Response{Results: []search.Result{}, Query: text}, nil
	}
	if s.search == nil {
		return search.Response{}, domainError(http.StatusServiceUnavailable, "SEARCH_UNAVAILABLE", "Search is not configured", nil)
	}

	var folderIDs []string
	if folderID != "" {
		if _, err := s.authorize(ctx, folderID, session.UserID, rbac.ActionRead); err != nil {
			return search.Response{}, err
		}
		folderIDs = []string{folderID}
	} else {
		folders, err := s.store.ListFoldersForUser(ctx, session.UserID)
		if err != nil {
			return search.Response{}, err
		}
		for _, folder := range folders {
			folderIDs = append(folderIDs, folder.ID)
		}
	}
	if len(folderIDs) == 0 {
		return search.Response{Results: []search.Result{}, Query: text}, nil
	}
	return s.search.Search(search.Query{Text: text, FolderIDs: folderIDs, Limit: limit, Offset: offset}), nil
}

// retryScopeTx runs fn in a scope transaction, redoing the whole transaction
// while it aborts on a write conflict. Any other error ends the loop.
func (s *Service) retryScopeTx(ctx context.Context, scope ordering.Scope, fn func(store.ScopeTx) (store.Item, error)) (store.Item, error) {
	attempt := 0
	return backoff.Retry(ctx, func() (store.Item, error) {
		attempt++
		var result store.Item
		err := s.store.RunInTx(ctx, func(tx store.ScopeTx) error {
			var err error
			result, err = fn(tx)
			return err
		})
		switch {
		case err == nil:
			s.metrics.ObserveInsertAttempt("committed")
			return result, nil
		case errors.Is(err, ordering.ErrTransactionAborted):
			s.metrics.ObserveInsertAttempt("aborted")
			log.Printf("ordering: scope %s transaction aborted (attempt %d of %d): %v", scope, attempt, s.cfg.InsertMaxTries, err)
			return store.Item{}, err
		default:
			s.metrics.ObserveInsertAttempt("failed")
			return store.Item{}, backoff.Permanent(err)
		}
	}, backoff.WithBackOff(s.backoff()), backoff.WithMaxTries(max(s.cfg.InsertMaxTries, 1)))
}

func (s *Service) afterWrite(ctx context.Context, scope ordering.Scope) {
	if err := s.cache.Invalidate(ctx, scope); err != nil {
		log.Printf("cache: invalidate %s: %v", scope, err)
	}
}

func normalizeLogged(items []ordering.Item, scope ordering.Scope) []ordering.Item {
	if dups := ordering.DuplicateKeys(items); len(dups) > 0 {
		log.Printf("ordering: scope %s has duplicate ordinal keys %v; repairing in this write", scope, dups)
	}
	return ordering.Normalize(items)
}
