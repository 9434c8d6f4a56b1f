package uvc

// transferPool owns the stream's transfer slots: fixed scratch buffers
// cycled through the transport for the stream's lifetime. Slots are
// never exposed to the application; payload bytes are copied out into
// frame buffers before a slot is resubmitted.
type transferPool struct {
	slots [][]byte
}

func newTransferPool(count, size int) *transferPool {
	p := &transferPool{slots: make([][]byte, count)}
	for i := range p.slots {
		p.slots[i] = make([]byte, size)
	}
	return p
}

func (p *transferPool) count() int { return len(p.slots) }

// buf returns the scratch buffer of one slot.
func (p *transferPool) buf(slot int) []byte {
	if slot < 0 || slot >= len(p.slots) {
		return nil
	}
	return p.slots[slot]
}

// submitAll primes the transport with every slot. Called at stream
// start; from then on each completion resubmits its own slot, keeping
// the in-flight count constant.
func (p *transferPool) submitAll(t Transport) (int, error) {
	for i := range p.slots {
		if err := t.Submit(i, p.slots[i]); err != nil {
			return i, err
		}
	}
	return len(p.slots), nil
}
