package tree

import (
	"errors"
	"fmt"
)

var (
	ErrPlacement       = errors.New("tree: placement failed")
	ErrSponsorNotFound = fmt.Errorf("%w: sponsor not found", ErrPlacement)
	ErrSponsorChanged  = fmt.Errorf("%w: sponsor cannot be changed", ErrPlacement)
	ErrNoOpenSlot      = fmt.Errorf("%w: no open slot", ErrPlacement)
	ErrAlreadyPlaced   = fmt.Errorf("%w: member already placed", ErrPlacement)
	ErrInvalidSide     = fmt.Errorf("%w: side must be left or right", ErrPlacement)
	ErrRootExists      = fmt.Errorf("%w: tree already has a root", ErrPlacement)

	ErrMemberNotFound = errors.New("tree: member not found")
	ErrNotPlaced      = errors.New("tree: member has no tree node")
	ErrAlreadyActive  = errors.New("tree: member already active")
	ErrBrokenChain    = errors.New("tree: ancestor chain is broken")
)
