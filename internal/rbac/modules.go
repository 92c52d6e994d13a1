package rbac

import (
	"context"
	"fmt"
	"strings"
)

// maxModuleDepth bounds the ancestor walk so a corrupted chain cannot spin.
const maxModuleDepth = 1000

// NewModuleParams carries the input for module creation.
type NewModuleParams struct {
	Name     string
	ParentID string
	Kind     string
}

// CreateModule creates a module, optionally attached to a parent.
func (s *Service) CreateModule(ctx context.Context, p NewModuleParams, actorID string) (Module, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return Module{}, fmt.Errorf("%w: module name is required", ErrInvalidInput)
	}
	p.ParentID = strings.TrimSpace(p.ParentID)
	if p.ParentID != "" {
		if _, err := s.store.Modules().Find(ctx, p.ParentID); err != nil {
			return Module{}, err
		}
	}
	mod := &Module{
		Name:     p.Name,
		ParentID: p.ParentID,
		Kind:     strings.TrimSpace(p.Kind),
	}
	if err := s.store.Modules().Create(ctx, mod); err != nil {
		return Module{}, err
	}
	return *mod, nil
}

// SetParentModule re-parents a module. An empty parentID detaches the module
// to the root. Fails with ErrCycle when the new parent chain already contains
// the module, and with ErrNotFound when either id does not exist.
func (s *Service) SetParentModule(ctx context.Context, moduleID, parentID, actorID string) error {
	moduleID = strings.TrimSpace(moduleID)
	parentID = strings.TrimSpace(parentID)
	if moduleID == "" {
		return fmt.Errorf("%w: module id is required", ErrInvalidInput)
	}

	mod, err := s.store.Modules().Find(ctx, moduleID)
	if err != nil {
		return err
	}
	if mod.ParentID == parentID {
		return nil
	}

	if parentID != "" {
		if parentID == moduleID {
			return fmt.Errorf("%w: module %s cannot be its own parent", ErrCycle, moduleID)
		}
		if err := s.checkAncestry(ctx, moduleID, parentID); err != nil {
			return err
		}
	}

	if err := s.store.Modules().SetParent(ctx, moduleID, parentID); err != nil {
		return err
	}
	s.audit(AuditEntry{
		ActorUserID: actorID,
		Action:      ActionModuleReparented,
		EntityType:  "module",
		EntityID:    moduleID,
		OldValue:    mod.ParentID,
		NewValue:    parentID,
	})
	return nil
}

// checkAncestry walks the ancestor chain of parentID and rejects the move
// when moduleID appears in it.
func (s *Service) checkAncestry(ctx context.Context, moduleID, parentID string) error {
	cur, err := s.store.Modules().Find(ctx, parentID)
	if err != nil {
		return err
	}
	for depth := 0; depth < maxModuleDepth; depth++ {
		if cur.ID == moduleID {
			return fmt.Errorf("%w: %s is an ancestor target of itself", ErrCycle, moduleID)
		}
		if cur.ParentID == "" {
			return nil
		}
		cur, err = s.store.Modules().Find(ctx, cur.ParentID)
		if err != nil {
			return err
		}
	}
	return fmt.Errorf("%w: ancestor chain exceeds %d levels", ErrCycle, maxModuleDepth)
}
