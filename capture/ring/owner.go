package ring

// Owner denotes the current owner of a buffer
type Owner int32

const (

	// OwnerNone denotes a buffer that is not in circulation (before streaming / after teardown)
	OwnerNone Owner = iota

	// OwnerDevice denotes a buffer queued with the device (hardware may write into it)
	OwnerDevice

	// OwnerLoop denotes a buffer dequeued and held by the acquisition loop
	OwnerLoop

	// OwnerWorker denotes a buffer diverted to the save worker
	OwnerWorker
)

// String returns a human-readable representation of the owner
func (o Owner) String() string {
	switch o {
	case OwnerNone:
		return "none"
	case OwnerDevice:
		return "device"
	case OwnerLoop:
		return "loop"
	case OwnerWorker:
		return "worker"
	}
	return "unknown"
}
