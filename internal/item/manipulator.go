// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vestiary Contributors

package item

import "github.com/vestiary/vestiary/internal/assets"

// RootManipulator owns one working copy of a root inventory during a
// single action. Mutations rewrite only the touched path; untouched
// subtrees are shared with the source snapshot.
type RootManipulator struct {
	assets      *assets.Manager
	items       []*Item
	isCharacter bool
	queued      []ChatDescriptor
}

// NewRootManipulator binds a manipulator to a working copy of items.
func NewRootManipulator(m *assets.Manager, items []*Item, isCharacter bool) *RootManipulator {
	return &RootManipulator{
		assets:      m,
		items:       items,
		isCharacter: isCharacter,
	}
}

// Items returns the current working copy.
func (r *RootManipulator) Items() []*Item { return r.items }

// IsCharacter reports whether the root belongs to a character (as
// opposed to a room inventory).
func (r *RootManipulator) IsCharacter() bool { return r.isCharacter }

// Assets returns the catalog the manipulator validates against.
func (r *RootManipulator) Assets() *assets.Manager { return r.assets }

// QueuedMessages returns the chat descriptors queued so far.
func (r *RootManipulator) QueuedMessages() []ChatDescriptor { return r.queued }

// QueueMessage records a chat-visible effect of the ongoing mutation.
func (r *RootManipulator) QueueMessage(d ChatDescriptor) {
	r.queued = append(r.queued, d)
}

// GetContainer scopes a manipulator to the container at path. Fails if
// the path does not resolve in the current working copy.
func (r *RootManipulator) GetContainer(path ContainerPath) (*Manipulator, bool) {
	if _, ok := path.resolve(r.items); !ok {
		return nil, false
	}
	return &Manipulator{root: r, path: path}, true
}

// Validate runs full structural validation on the working copy.
func (r *RootManipulator) Validate() error {
	return ValidateItems(r.assets, r.items, r.isCharacter)
}

// updateContainer applies fn to the container at path, rewriting the
// ancestor chain. fn returns the new contents and whether it applied.
func (r *RootManipulator) updateContainer(path ContainerPath, fn func([]*Item) ([]*Item, bool)) bool {
	items, ok := updateAt(r.items, path, fn)
	if !ok {
		return false
	}
	r.items = items
	return true
}

func updateAt(items []*Item, path ContainerPath, fn func([]*Item) ([]*Item, bool)) ([]*Item, bool) {
	if len(path) == 0 {
		return fn(items)
	}
	step := path[0]
	for i, it := range items {
		if it.ID() != step.Item {
			continue
		}
		contents, ok := it.ModuleItems(step.Module)
		if !ok {
			return nil, false
		}
		newContents, ok := updateAt(contents, path[1:], fn)
		if !ok {
			return nil, false
		}
		newItem, ok := it.WithModuleItems(step.Module, newContents)
		if !ok {
			return nil, false
		}
		out := make([]*Item, len(items))
		copy(out, items)
		out[i] = newItem
		return out, true
	}
	return nil, false
}

// Manipulator is a scoped view of one container within the root's
// working copy. All edits flow back through the root by path copy.
type Manipulator struct {
	root *RootManipulator
	path ContainerPath
}

// IsRoot reports whether the manipulator addresses the root inventory.
func (m *Manipulator) IsRoot() bool { return len(m.path) == 0 }

// IsCharacterRoot reports whether this is the root of a character.
func (m *Manipulator) IsCharacterRoot() bool {
	return m.IsRoot() && m.root.isCharacter
}

// ContainerDefinition returns the module definition the container sits
// in, or nil for the root inventory.
func (m *Manipulator) ContainerDefinition() *assets.ModuleDefinition {
	if len(m.path) == 0 {
		return nil
	}
	last := m.path[len(m.path)-1]
	parentPath := m.path[:len(m.path)-1]
	parent, ok := parentPath.resolve(m.root.items)
	if !ok {
		return nil
	}
	for _, it := range parent {
		if it.ID() == last.Item {
			return it.Asset().Module(last.Module)
		}
	}
	return nil
}

// Items returns the container's current contents.
func (m *Manipulator) Items() []*Item {
	items, _ := m.path.resolve(m.root.items)
	return items
}

// QueueMessage records a chat-visible effect.
func (m *Manipulator) QueueMessage(d ChatDescriptor) {
	m.root.QueueMessage(d)
}

// AddItem appends the item to the container. Rejects duplicate ids
// within the container; full-tree constraints are left to validation.
func (m *Manipulator) AddItem(it *Item) bool {
	return m.root.updateContainer(m.path, func(items []*Item) ([]*Item, bool) {
		for _, existing := range items {
			if existing.ID() == it.ID() {
				return nil, false
			}
		}
		out := make([]*Item, 0, len(items)+1)
		out = append(out, items...)
		// Bodyparts keep catalog order at a character root; everything
		// else appends at the end.
		if m.IsCharacterRoot() && it.Asset().Bodypart != "" {
			order := m.root.assets.BodypartOrder(it.Asset().Bodypart)
			at := 0
			for i, existing := range items {
				bp := existing.Asset().Bodypart
				if bp == "" || m.root.assets.BodypartOrder(bp) > order {
					break
				}
				at = i + 1
			}
			out = append(out[:at], append([]*Item{it}, items[at:]...)...)
			return out, true
		}
		return append(out, it), true
	})
}

// RemoveMatchingItems removes every item the predicate matches and
// returns the removed items in container order.
func (m *Manipulator) RemoveMatchingItems(pred func(*Item) bool) []*Item {
	var removed []*Item
	m.root.updateContainer(m.path, func(items []*Item) ([]*Item, bool) {
		kept := make([]*Item, 0, len(items))
		for _, it := range items {
			if pred(it) {
				removed = append(removed, it)
			} else {
				kept = append(kept, it)
			}
		}
		return kept, true
	})
	return removed
}

// MoveItem shifts the item by the relative delta within its container,
// clamping at either end. Fails only if the item is not present.
func (m *Manipulator) MoveItem(id ID, shift int) bool {
	return m.root.updateContainer(m.path, func(items []*Item) ([]*Item, bool) {
		from := -1
		for i, it := range items {
			if it.ID() == id {
				from = i
				break
			}
		}
		if from < 0 {
			return nil, false
		}
		to := from + shift
		if to < 0 {
			to = 0
		}
		if to > len(items)-1 {
			to = len(items) - 1
		}
		if to == from {
			return items, true
		}
		out := make([]*Item, 0, len(items))
		out = append(out, items[:from]...)
		out = append(out, items[from+1:]...)
		out = append(out[:to], append([]*Item{items[from]}, out[to:]...)...)
		return out, true
	})
}

// ModifyItem replaces the addressed item with the result of transform.
// Fails if the item is absent or the transform reports failure.
func (m *Manipulator) ModifyItem(id ID, transform func(*Item) (*Item, bool)) bool {
	return m.root.updateContainer(m.path, func(items []*Item) ([]*Item, bool) {
		for i, it := range items {
			if it.ID() != id {
				continue
			}
			newItem, ok := transform(it)
			if !ok || newItem == nil {
				return nil, false
			}
			out := make([]*Item, len(items))
			copy(out, items)
			out[i] = newItem
			return out, true
		}
		return nil, false
	})
}
