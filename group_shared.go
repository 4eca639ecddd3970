package coredb

// SharedGroup is the multi-reader/single-writer entry point (spec.md §5,
// §6's "SharedGroup::open(path, mode)"): one Group plus the cross-process
// sharedInfo mmap used to coordinate readers and the single writer.
//
// A real multi-process deployment relies on every participant mapping the
// same backing file; this module runs all participants in one process, so
// the SlabAlloc itself is already shared in-memory and the flock-guarded
// sharedInfo only needs to coordinate ordering, not visibility.
type SharedGroup struct {
	group *Group
	info  *sharedInfo
}

// OpenSharedGroup opens (creating if absent) both the data file and its
// companion ".lock" file, and initializes the lock file's shared-info
// struct from the data file's current state if this is the first opener.
func OpenSharedGroup(opts GroupOpts) (*SharedGroup, error) {
	opts.Mode = ModeShared
	g, err := OpenGroup(opts)
	if err != nil {
		return nil, err
	}

	info, err := openSharedInfo(opts.Path + ".lock")
	if err != nil {
		g.Close()
		return nil, err
	}

	if info.currentTop() == 0 {
		if err := info.publish(uint64(g.top.Ref()), g.alloc.Baseline(), g.currentVersion); err != nil {
			info.close()
			g.Close()
			return nil, err
		}
	}

	g.sharedInfo = info
	return &SharedGroup{group: g, info: info}, nil
}

// Close releases the shared group's file and lock-file resources.
func (sg *SharedGroup) Close() error {
	if err := sg.info.close(); err != nil {
		return err
	}
	return sg.group.Close()
}

// ReadTransaction is a snapshot handle opened by BeginRead, pinned at a
// fixed top-ref/version until EndRead (spec.md §5's reader protocol).
type ReadTransaction struct {
	sg      *SharedGroup
	version uint64
	top     *Array
}

// BeginRead registers as a reader of the current (or most recent
// not-yet-superseded) commit, per spec.md §5 reader protocol step 1-2.
func (sg *SharedGroup) BeginRead() (*ReadTransaction, error) {
	version, _, topRef, err := sg.info.registerReader()
	if err != nil {
		return nil, err
	}
	top, err := OpenArray(sg.group.alloc, Ref(topRef))
	if err != nil {
		return nil, err
	}
	return &ReadTransaction{sg: sg, version: version, top: top}, nil
}

// EndRead releases the pinned version, per step 4, and lets the ring
// buffer drop its leading zero-count entries. Commit does not reuse
// mapped-image free-list holes (it always appends at the end of the
// file), so releasing a version frees no file space by itself.
func (t *ReadTransaction) EndRead() error {
	return t.sg.info.deregisterReader(t.version)
}

// GetTable opens a table for reading against this transaction's pinned
// snapshot rather than the group's live (possibly since-committed) top.
func (t *ReadTransaction) GetTable(name string) (*Table, error) {
	snapshot := &Group{alloc: t.sg.group.alloc, top: t.top, valid: true, mode: ModeReadOnly}
	return snapshot.GetTable(name)
}

// TableNames lists the tables visible in this transaction's snapshot.
func (t *ReadTransaction) TableNames() ([]string, error) {
	snapshot := &Group{alloc: t.sg.group.alloc, top: t.top, valid: true, mode: ModeReadOnly}
	return snapshot.TableNames()
}

// BeginWrite acquires the single-writer lock and returns the live,
// mutable Group (spec.md §5 writer protocol step 1-2). The caller must
// call EndWrite exactly once to release the lock.
func (sg *SharedGroup) BeginWrite() (*Group, error) {
	if err := sg.info.lockWrite(); err != nil {
		return nil, err
	}
	return sg.group, nil
}

// EndWrite releases the writer lock, optionally committing first (spec.md
// §5 writer protocol step 3-7, delegated to Group.Commit).
func (sg *SharedGroup) EndWrite(commit bool) error {
	defer sg.info.unlockWrite()

	if !commit {
		return nil
	}
	return sg.group.Commit()
}
