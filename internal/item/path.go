// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vestiary Contributors

package item

// ContainerStep descends into one storage module of one item.
type ContainerStep struct {
	Item   ID     `json:"item"`
	Module string `json:"module"`
}

// ContainerPath addresses a nested container from a root inventory.
// The empty path is the root itself.
type ContainerPath []ContainerStep

// Path addresses one item inside a (possibly nested) container.
// Paths hold ids, never live references, so they stay meaningful
// across snapshots.
type Path struct {
	Container ContainerPath `json:"container"`
	Item      ID            `json:"item"`
}

// resolve walks the path from items, returning the addressed container
// contents. The empty path resolves to items itself.
func (p ContainerPath) resolve(items []*Item) ([]*Item, bool) {
	for _, step := range p {
		var next []*Item
		found := false
		for _, it := range items {
			if it.ID() == step.Item {
				contents, ok := it.ModuleItems(step.Module)
				if !ok {
					return nil, false
				}
				next = contents
				found = true
				break
			}
		}
		if !found {
			return nil, false
		}
		items = next
	}
	return items, true
}

// ResolveContainer walks a container path from a root inventory and
// returns the addressed container's contents.
func ResolveContainer(items []*Item, path ContainerPath) ([]*Item, bool) {
	return path.resolve(items)
}

// FindItem locates an item by path within a root inventory.
func FindItem(items []*Item, path Path) (*Item, bool) {
	container, ok := path.Container.resolve(items)
	if !ok {
		return nil, false
	}
	for _, it := range container {
		if it.ID() == path.Item {
			return it, true
		}
	}
	return nil, false
}
