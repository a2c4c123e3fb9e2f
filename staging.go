package spacecore

// StagingError defines the invalid staging requests. Reported to the caller,
// otherwise ignored: a failed staging call never mutates the vehicle.
type StagingError uint8

// The possible staging errors.
const (
	ErrNoStagesRemain StagingError = iota + 1
)

func (e StagingError) Error() string {
	switch e {
	case ErrNoStagesRemain:
		return "no stages remain"
	}
	return "unknown staging error"
}

// StageGroup lists the parts which fire together at one activation index.
type StageGroup struct {
	Index int
	Parts []*Part
}

// StageGroups returns the ordered partition of the attached parts by their
// activation index. Unstaged parts (negative index) are excluded.
func (v *Vehicle) StageGroups() []StageGroup {
	byIndex := make(map[int][]*Part)
	for _, id := range v.order {
		p := v.parts[id]
		if p.status == PartDetached || p.Stage < 0 {
			continue
		}
		byIndex[p.Stage] = append(byIndex[p.Stage], p)
	}
	groups := make([]StageGroup, 0, len(byIndex))
	for idx := 0; idx <= v.maxStage; idx++ {
		if parts, found := byIndex[idx]; found {
			groups = append(groups, StageGroup{Index: idx, Parts: parts})
		}
	}
	return groups
}

// TerminalStage reports whether no stages remain to fire.
func (v *Vehicle) TerminalStage() bool {
	return v.stage > v.maxStage
}

// AdvanceStage fires the current stage group: its parts are consumed and
// detached along with their subtrees, the next group's parts activate, and
// the stage index advances. Groups fire in strictly increasing index order.
// An empty group is a no-op which still advances the index. Returns
// ErrNoStagesRemain at the terminal stage, leaving the vehicle unchanged.
func (v *Vehicle) AdvanceStage() error {
	if v.TerminalStage() {
		return ErrNoStagesRemain
	}
	fired := 0
	// Snapshot the group first: detaching mutates the graph under us.
	group := make([]string, 0)
	for _, id := range v.order {
		p := v.parts[id]
		if p.status != PartDetached && p.Stage == v.stage {
			group = append(group, id)
		}
	}
	for _, id := range group {
		p := v.parts[id]
		if p.status == PartDetached {
			continue // already gone with an earlier subtree of this group
		}
		if id == v.rootID {
			continue // the command root never stages away
		}
		parent := v.parts[p.parent]
		parent.children = removeID(parent.children, id)
		v.markDetached(p)
		fired++
	}
	v.stage++
	activated := 0
	for _, id := range v.order {
		p := v.parts[id]
		if p.status == PartInactive && p.Stage == v.stage {
			p.status = PartActive
			activated++
		}
	}
	v.invalidate()
	v.logger.Log("subsys", "staging", "stage", v.stage, "fired", fired, "activated", activated)
	return nil
}
