package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/repository"
)

// CategoryService manages the global category list and is the only place
// that creates or removes user/category links. A category disappears once
// no user references it.
type CategoryService struct {
	store repository.Store
}

func NewCategoryService(store repository.Store) *CategoryService {
	return &CategoryService{store: store}
}

// Create adds a new global category.
func (s *CategoryService) Create(ctx context.Context, name string) (core.Category, error) {
	return s.create(ctx, s.store, name)
}

func (s *CategoryService) create(ctx context.Context, st repository.Store, name string) (core.Category, error) {
	if core.Blank(name) {
		return core.Category{}, core.Rule(core.ErrEmptyField, "Name can't be null")
	}
	slog.InfoContext(ctx, "Creating category",
		log.FieldComponent, log.ComponentCategory,
		log.FieldCategory, name)

	_, err := st.Categories().GetByName(ctx, name)
	switch {
	case err == nil:
		return core.Category{}, core.Rule(core.ErrConflict, "Category %s exists", name)
	case !errors.Is(err, repository.ErrNotFound):
		return core.Category{}, fmt.Errorf("lookup category: %w", err)
	}

	c, err := st.Categories().Create(ctx, core.Category{Name: name})
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	return c, nil
}

func (s *CategoryService) GetByID(ctx context.Context, id int64) (core.Category, error) {
	return s.store.Categories().GetByID(ctx, id)
}

func (s *CategoryService) GetByName(ctx context.Context, name string) (core.Category, error) {
	return s.store.Categories().GetByName(ctx, name)
}

// ListForUser returns the categories linked to user, ordered by name.
func (s *CategoryService) ListForUser(ctx context.Context, user core.User) ([]core.Category, error) {
	return s.store.UserCategories().ListCategories(ctx, user.ID)
}

// Update renames c. On success c carries the new name.
func (s *CategoryService) Update(ctx context.Context, c *core.Category, name string) (int64, error) {
	if core.Blank(name) {
		return 0, core.Rule(core.ErrEmptyField, "Updated name can't be null")
	}
	if c.Name == name {
		return 0, core.Rule(core.ErrUnchanged, "Credentials must be changed to update")
	}

	_, err := s.store.Categories().GetByName(ctx, name)
	switch {
	case err == nil:
		return 0, core.Rule(core.ErrConflict, "Such name is unavailable")
	case !errors.Is(err, repository.ErrNotFound):
		return 0, fmt.Errorf("lookup category: %w", err)
	}

	updated := *c
	updated.Name = name
	rows, err := s.store.Categories().Update(ctx, updated)
	if err != nil {
		return 0, fmt.Errorf("update category: %w", err)
	}
	slog.InfoContext(ctx, "Category renamed",
		log.FieldComponent, log.ComponentCategory,
		"from", c.Name,
		"to", name)
	*c = updated
	return rows, nil
}

// Delete removes the category globally. Links and transaction references go
// with it.
func (s *CategoryService) Delete(ctx context.Context, c core.Category) (string, error) {
	stored, err := s.store.Categories().GetByName(ctx, c.Name)
	if errors.Is(err, repository.ErrNotFound) {
		return "", core.Rule(core.ErrNotFound, "Category %s doesn't exist", c.Name)
	}
	if err != nil {
		return "", fmt.Errorf("lookup category: %w", err)
	}
	if _, err := s.store.Categories().Delete(ctx, stored); err != nil {
		return "", fmt.Errorf("delete category: %w", err)
	}
	return fmt.Sprintf("Category %s successfully deleted", c.Name), nil
}

// UserCount returns how many users are linked to c.
func (s *CategoryService) UserCount(ctx context.Context, c core.Category) (int64, error) {
	return s.store.UserCategories().CountUsers(ctx, c.ID)
}

// Attach links the named category to user, creating the category first when
// nobody has it yet.
func (s *CategoryService) Attach(ctx context.Context, user core.User, name string) (string, error) {
	var msg string
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		var err error
		msg, err = s.attach(ctx, tx, user, name)
		return err
	})
	return msg, err
}

func (s *CategoryService) attach(ctx context.Context, st repository.Store, user core.User, name string) (string, error) {
	if core.Blank(name) {
		return "", core.Rule(core.ErrEmptyField, "Name can't be null")
	}

	c, err := st.Categories().GetByName(ctx, name)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		if c, err = s.create(ctx, st, name); err != nil {
			return "", err
		}
	case err != nil:
		return "", fmt.Errorf("lookup category: %w", err)
	default:
		link := core.UserCategory{UserID: user.ID, CategoryID: c.ID}
		linked, err := st.UserCategories().Exists(ctx, link)
		if err != nil {
			return "", fmt.Errorf("check category link: %w", err)
		}
		if linked {
			return "", core.Rule(core.ErrConflict, "Category %s exists", name)
		}
	}

	if err := st.UserCategories().Create(ctx, core.UserCategory{UserID: user.ID, CategoryID: c.ID}); err != nil {
		return "", fmt.Errorf("link category: %w", err)
	}
	slog.DebugContext(ctx, "Category linked",
		log.FieldComponent, log.ComponentCategory,
		log.FieldUserID, user.ID,
		log.FieldCategory, name)
	return "Successfully created category", nil
}

// Detach unlinks c from user and deletes the category when that was its
// last link.
func (s *CategoryService) Detach(ctx context.Context, user core.User, c core.Category) error {
	return s.store.WithinTx(ctx, func(tx repository.Store) error {
		return s.detach(ctx, tx, user, c)
	})
}

func (s *CategoryService) detach(ctx context.Context, st repository.Store, user core.User, c core.Category) error {
	stored, err := st.Categories().GetByName(ctx, c.Name)
	if errors.Is(err, repository.ErrNotFound) {
		return core.Rule(core.ErrNotFound, "Category %s doesn't exist", c.Name)
	}
	if err != nil {
		return fmt.Errorf("lookup category: %w", err)
	}

	rows, err := st.UserCategories().Delete(ctx, core.UserCategory{UserID: user.ID, CategoryID: stored.ID})
	if err != nil {
		return fmt.Errorf("unlink category: %w", err)
	}
	if rows == 0 {
		return core.Rule(core.ErrNotFound, "Category %s is not linked to %s", c.Name, user.Login)
	}

	remaining, err := st.UserCategories().CountUsers(ctx, stored.ID)
	if err != nil {
		return fmt.Errorf("count category users: %w", err)
	}
	if remaining == 0 {
		if _, err := st.Categories().Delete(ctx, stored); err != nil {
			return fmt.Errorf("delete category: %w", err)
		}
		slog.DebugContext(ctx, "Released unused category",
			log.FieldComponent, log.ComponentCategory,
			log.FieldCategory, stored.Name)
	}
	return nil
}
