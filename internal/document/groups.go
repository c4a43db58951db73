package document

import (
	"errors"
	"fmt"
)

// ErrEmptyGroup is returned when a group would be created without members.
var ErrEmptyGroup = errors.New("group has no images")

// AllImageIDsInGroup returns every image id reachable from the group,
// breadth first: the group's own images, then those of its subgroups.
func AllImageIDsInGroup(s Scene, groupID string) []string {
	var out []string
	visited := map[string]bool{}
	queue := []string{groupID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if visited[id] {
			continue
		}
		visited[id] = true
		g, ok := s.Group(id)
		if !ok {
			continue
		}
		out = append(out, g.ImageIDs...)
		queue = append(queue, g.ChildGroupIDs...)
	}
	return out
}

// GroupOfImage returns the id of the group directly containing the image,
// or "" when it is top level.
func GroupOfImage(s Scene, imageID string) string {
	for _, g := range s.Groups {
		if containsString(g.ImageIDs, imageID) {
			return g.ID
		}
	}
	return ""
}

// IsDescendantGroup reports whether candidate is groupID or sits anywhere
// beneath it.
func IsDescendantGroup(s Scene, groupID, candidate string) bool {
	visited := map[string]bool{}
	queue := []string{groupID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if id == candidate {
			return true
		}
		if visited[id] {
			continue
		}
		visited[id] = true
		if g, ok := s.Group(id); ok {
			queue = append(queue, g.ChildGroupIDs...)
		}
	}
	return false
}

// CreateGroup gathers the images into a new group. Images leave whatever
// group held them; when they all came from the same group the new group is
// nested inside it.
func CreateGroup(s Scene, groupID, label string, imageIDs []string) (Scene, error) {
	var members []string
	for _, id := range imageIDs {
		if s.HasImage(id) && !containsString(members, id) {
			members = append(members, id)
		}
	}
	if len(members) == 0 {
		return s, ErrEmptyGroup
	}

	parent := GroupOfImage(s, members[0])
	for _, id := range members[1:] {
		if GroupOfImage(s, id) != parent {
			parent = ""
			break
		}
	}

	next := s.Clone()
	detachImages(&next, members)
	next.Groups = append(next.Groups, Group{
		ID:            groupID,
		Label:         label,
		IsExpanded:    true,
		ImageIDs:      members,
		ChildGroupIDs: []string{},
		ParentID:      parent,
	})
	if parent != "" {
		pi := next.GroupIndex(parent)
		next.Groups[pi].ChildGroupIDs = append(next.Groups[pi].ChildGroupIDs, groupID)
	}
	return pruneEmptyGroups(next), nil
}

// DeleteGroup removes the group and hands its images and subgroups to the
// enclosing group, or to the top level. Images are never deleted.
func DeleteGroup(s Scene, groupID string) (Scene, error) {
	gi := s.GroupIndex(groupID)
	if gi < 0 {
		return s, fmt.Errorf("group %s: %w", groupID, ErrNotFound)
	}
	g := s.Groups[gi]
	next := s.Clone()

	for _, child := range g.ChildGroupIDs {
		if ci := next.GroupIndex(child); ci >= 0 {
			next.Groups[ci].ParentID = g.ParentID
		}
	}
	if g.ParentID != "" {
		if pi := next.GroupIndex(g.ParentID); pi >= 0 {
			p := &next.Groups[pi]
			p.ChildGroupIDs = removeString(p.ChildGroupIDs, groupID)
			p.ChildGroupIDs = append(p.ChildGroupIDs, g.ChildGroupIDs...)
			p.ImageIDs = append(p.ImageIDs, g.ImageIDs...)
		}
	}
	next.Groups = append(next.Groups[:gi:gi], next.Groups[gi+1:]...)
	return pruneEmptyGroups(next), nil
}

// SetGroupParent nests groupID under parentID ("" for top level). A move
// that would make the group its own descendant is rejected with
// ErrGroupCycle and the scene is returned unchanged.
func SetGroupParent(s Scene, groupID, parentID string) (Scene, error) {
	gi := s.GroupIndex(groupID)
	if gi < 0 {
		return s, fmt.Errorf("group %s: %w", groupID, ErrNotFound)
	}
	if parentID != "" {
		if !containsGroup(s, parentID) {
			return s, fmt.Errorf("group %s: %w", parentID, ErrNotFound)
		}
		if IsDescendantGroup(s, groupID, parentID) {
			return s, ErrGroupCycle
		}
	}
	old := s.Groups[gi].ParentID
	if old == parentID {
		return s, nil
	}

	next := s.Clone()
	if old != "" {
		if oi := next.GroupIndex(old); oi >= 0 {
			next.Groups[oi].ChildGroupIDs = removeString(next.Groups[oi].ChildGroupIDs, groupID)
		}
	}
	next.Groups[gi].ParentID = parentID
	if parentID != "" {
		pi := next.GroupIndex(parentID)
		next.Groups[pi].ChildGroupIDs = append(next.Groups[pi].ChildGroupIDs, groupID)
	}
	return pruneEmptyGroups(next), nil
}

// MoveImageToGroup moves an image into groupID, or out of every group when
// groupID is "".
func MoveImageToGroup(s Scene, imageID, groupID string) (Scene, error) {
	if !s.HasImage(imageID) {
		return s, fmt.Errorf("image %s: %w", imageID, ErrNotFound)
	}
	if groupID != "" && !containsGroup(s, groupID) {
		return s, fmt.Errorf("group %s: %w", groupID, ErrNotFound)
	}
	if GroupOfImage(s, imageID) == groupID {
		return s, nil
	}
	next := s.Clone()
	detachImages(&next, []string{imageID})
	if groupID != "" {
		gi := next.GroupIndex(groupID)
		next.Groups[gi].ImageIDs = append(next.Groups[gi].ImageIDs, imageID)
	}
	return pruneEmptyGroups(next), nil
}

func RenameGroup(s Scene, groupID, label string) (Scene, error) {
	return updateGroup(s, groupID, func(g *Group) { g.Label = label })
}

func SetGroupShowLabel(s Scene, groupID string, show bool) (Scene, error) {
	return updateGroup(s, groupID, func(g *Group) { g.ShowLabel = show })
}

func SetGroupExpanded(s Scene, groupID string, expanded bool) (Scene, error) {
	return updateGroup(s, groupID, func(g *Group) { g.IsExpanded = expanded })
}

// pruneEmptyGroups removes groups with neither images nor subgroups,
// repeating until no parent is left empty by a removal. s must be a clone.
func pruneEmptyGroups(s Scene) Scene {
	for {
		empty := ""
		for _, g := range s.Groups {
			if len(g.ImageIDs) == 0 && len(g.ChildGroupIDs) == 0 {
				empty = g.ID
				break
			}
		}
		if empty == "" {
			return s
		}
		kept := s.Groups[:0:0]
		for _, g := range s.Groups {
			if g.ID == empty {
				continue
			}
			g.ChildGroupIDs = removeString(g.ChildGroupIDs, empty)
			kept = append(kept, g)
		}
		s.Groups = kept
	}
}

func updateGroup(s Scene, groupID string, fn func(*Group)) (Scene, error) {
	gi := s.GroupIndex(groupID)
	if gi < 0 {
		return s, fmt.Errorf("group %s: %w", groupID, ErrNotFound)
	}
	next := s.Clone()
	fn(&next.Groups[gi])
	return next, nil
}

// detachImages removes the ids from every group of a scene the caller owns.
func detachImages(s *Scene, ids []string) {
	for i := range s.Groups {
		for _, id := range ids {
			s.Groups[i].ImageIDs = removeString(s.Groups[i].ImageIDs, id)
		}
	}
}

func containsGroup(s Scene, id string) bool { return s.GroupIndex(id) >= 0 }
