/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package immovable

// RequestCrossing asks a Crossroad for mutual-exclusion access; the
// crossroad grants a token in arrival order.
type RequestCrossing struct {
	RequesterID string
}

// ReleaseCrossing returns a previously-granted token.
type ReleaseCrossing struct {
	RequesterID string
}

// TokenGranted records the crossroad handing exclusive access to
// RequesterID.
type TokenGranted struct {
	RequesterID string
}

// TokenReleased records RequesterID giving up the token, and whether the
// queue produced a new holder.
type TokenReleased struct {
	RequesterID string
	NextHolder  string // "" if the queue is now empty
}

// CrossingQueued records a requester waiting behind the current holder.
type CrossingQueued struct {
	RequesterID string
}

// Crossroad implements entity.Handler for a plain crossroad: a
// mutual-exclusion arbiter over one shared token, granted in arrival
// order.
type Crossroad struct {
	*Base
	outbox *Outbox

	holder string
	queue  []string
}

// NewCrossroad constructs a Crossroad handler.
func NewCrossroad(base *Base, outbox *Outbox) *Crossroad {
	return &Crossroad{Base: base, outbox: outbox}
}

func (c *Crossroad) HandleCommand(cmd interface{}) ([]interface{}, error) {
	switch cc := cmd.(type) {
	case RequestCrossing:
		if c.holder == "" {
			return []interface{}{TokenGranted{RequesterID: cc.RequesterID}}, nil
		}
		return []interface{}{CrossingQueued{RequesterID: cc.RequesterID}}, nil

	case ReleaseCrossing:
		if c.holder != cc.RequesterID {
			return nil, nil
		}
		next := ""
		if len(c.queue) > 0 {
			next = c.queue[0]
		}
		if next != "" {
			c.outbox.Request(next, c.ID, TokenGranted{RequesterID: next})
		}
		return []interface{}{TokenReleased{RequesterID: cc.RequesterID, NextHolder: next}}, nil

	default:
		return c.Base.HandleCommand(cmd)
	}
}

func (c *Crossroad) Apply(event interface{}) {
	c.Base.Apply(event)
	switch ev := event.(type) {
	case TokenGranted:
		c.holder = ev.RequesterID
	case CrossingQueued:
		c.queue = append(c.queue, ev.RequesterID)
	case TokenReleased:
		c.holder = ev.NextHolder
		if ev.NextHolder != "" && len(c.queue) > 0 {
			c.queue = c.queue[1:]
		}
	}
}

type crossroadSnapshot struct {
	Base   snapshot `json:"base"`
	Holder string   `json:"holder"`
	Queue  []string `json:"queue"`
}

func (c *Crossroad) Snapshot() interface{} {
	return crossroadSnapshot{Base: c.Base.Snapshot(), Holder: c.holder, Queue: append([]string(nil), c.queue...)}
}

func (c *Crossroad) Restore(blob interface{}) {
	s, ok := blob.(crossroadSnapshot)
	if !ok {
		return
	}
	c.Base.Restore(s.Base)
	c.holder = s.Holder
	c.queue = s.Queue
}

// RequestPedestrianCrossing / RequestVehicleCrossing ask a
// PedestrianCrossroad for passage; the active phase (vehicle_pass)
// decides which queue is serviced.
type RequestPedestrianCrossing struct {
	RequesterID string
}
type RequestVehicleCrossing struct {
	RequesterID string
}

// PedestrianCrossingGranted / VehicleCrossingGranted record a requester
// entering the crossing.
type PedestrianCrossingGranted struct {
	RequesterID string
}
type VehicleCrossingGranted struct {
	RequesterID string
}

// CrossingLeft records a crosser departing the crossing. Flipped and
// VehiclePass (meaningful only when Flipped is true) record a phase
// transition decided in HandleCommand, from state as of the departure,
// so Apply only ever mutates state and never re-sends the grant
// notifications HandleCommand already sent live.
type CrossingLeft struct {
	RequesterID string
	WasVehicle  bool
	Flipped     bool
	VehiclePass bool
}

// PhaseFlipped records vehicle_pass toggling once the active queue
// drains.
type PhaseFlipped struct {
	VehiclePass bool
}

// LeaveCrossing is sent by a requester once it has finished crossing.
type LeaveCrossing struct {
	RequesterID string
	WasVehicle  bool
}

// PedestrianQueued / VehicleQueued record a requester waiting for the
// phase to flip in its favor.
type PedestrianQueued struct {
	RequesterID string
}
type VehicleQueued struct {
	RequesterID string
}

// PedestrianCrossroad implements entity.Handler for a pedestrian
// crossing: a two-phase arbiter (vehicle_pass flag) with separate
// pedestrian/vehicle request queues and an active-crosser counter.
type PedestrianCrossroad struct {
	*Base
	outbox *Outbox

	vehiclePass           bool
	pedestrianRequests    []string
	vehicleRequests       []string
	numPedestrianCrossing int
}

// NewPedestrianCrossroad constructs a PedestrianCrossroad handler. The
// phase starts in favor of vehicles, matching a crossroad's default
// "traffic flows" state before any pedestrian has ever requested it.
func NewPedestrianCrossroad(base *Base, outbox *Outbox) *PedestrianCrossroad {
	return &PedestrianCrossroad{Base: base, outbox: outbox, vehiclePass: true}
}

func (p *PedestrianCrossroad) HandleCommand(cmd interface{}) ([]interface{}, error) {
	switch c := cmd.(type) {
	case RequestPedestrianCrossing:
		if !p.vehiclePass {
			return []interface{}{PedestrianCrossingGranted{RequesterID: c.RequesterID}}, nil
		}
		return []interface{}{PedestrianQueued{RequesterID: c.RequesterID}}, nil

	case RequestVehicleCrossing:
		if p.vehiclePass {
			return []interface{}{VehicleCrossingGranted{RequesterID: c.RequesterID}}, nil
		}
		return []interface{}{VehicleQueued{RequesterID: c.RequesterID}}, nil

	case LeaveCrossing:
		numAfter := p.numPedestrianCrossing
		if !c.WasVehicle {
			numAfter--
		}
		flipToPedestrian := p.vehiclePass && numAfter <= 0 && len(p.pedestrianRequests) > 0
		flipToVehicle := !p.vehiclePass && numAfter <= 0 && len(p.pedestrianRequests) == 0 && len(p.vehicleRequests) > 0

		// The phase flips to pedestrians when pedestrians are waiting and
		// none is crossing once this requester has left; it flips back to
		// vehicles when no pedestrian is crossing or waiting and vehicles
		// are waiting. Crossing vehicles are not counted. On a flip every
		// waiter of the newly active side is granted at once.
		if flipToPedestrian {
			for _, id := range p.pedestrianRequests {
				p.outbox.Request(id, p.ID, PedestrianCrossingGranted{RequesterID: id})
			}
		} else if flipToVehicle {
			for _, id := range p.vehicleRequests {
				p.outbox.Request(id, p.ID, VehicleCrossingGranted{RequesterID: id})
			}
		}

		return []interface{}{CrossingLeft{
			RequesterID: c.RequesterID,
			WasVehicle:  c.WasVehicle,
			Flipped:     flipToPedestrian || flipToVehicle,
			VehiclePass: flipToVehicle,
		}}, nil

	default:
		return p.Base.HandleCommand(cmd)
	}
}

func (p *PedestrianCrossroad) Apply(event interface{}) {
	p.Base.Apply(event)
	switch ev := event.(type) {
	case PedestrianQueued:
		p.pedestrianRequests = append(p.pedestrianRequests, ev.RequesterID)
	case VehicleQueued:
		p.vehicleRequests = append(p.vehicleRequests, ev.RequesterID)
	case PedestrianCrossingGranted:
		p.numPedestrianCrossing++
		p.pedestrianRequests = removeFirst(p.pedestrianRequests, ev.RequesterID)
	case VehicleCrossingGranted:
		p.vehicleRequests = removeFirst(p.vehicleRequests, ev.RequesterID)
	case CrossingLeft:
		if !ev.WasVehicle {
			p.numPedestrianCrossing--
		}
		if ev.Flipped {
			if ev.VehiclePass {
				p.vehiclePass = true
				p.vehicleRequests = nil
			} else {
				p.vehiclePass = false
				p.numPedestrianCrossing += len(p.pedestrianRequests)
				p.pedestrianRequests = nil
			}
		}
	case PhaseFlipped:
		p.vehiclePass = ev.VehiclePass
	}
}

func removeFirst(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

type pedestrianCrossroadSnapshot struct {
	Base                  snapshot `json:"base"`
	VehiclePass           bool     `json:"vehiclePass"`
	PedestrianRequests    []string `json:"pedestrianRequests"`
	VehicleRequests       []string `json:"vehicleRequests"`
	NumPedestrianCrossing int      `json:"numPedestrianCrossing"`
}

func (p *PedestrianCrossroad) Snapshot() interface{} {
	return pedestrianCrossroadSnapshot{
		Base:                  p.Base.Snapshot(),
		VehiclePass:           p.vehiclePass,
		PedestrianRequests:    append([]string(nil), p.pedestrianRequests...),
		VehicleRequests:       append([]string(nil), p.vehicleRequests...),
		NumPedestrianCrossing: p.numPedestrianCrossing,
	}
}

func (p *PedestrianCrossroad) Restore(blob interface{}) {
	s, ok := blob.(pedestrianCrossroadSnapshot)
	if !ok {
		return
	}
	p.Base.Restore(s.Base)
	p.vehiclePass = s.VehiclePass
	p.pedestrianRequests = s.PedestrianRequests
	p.vehicleRequests = s.VehicleRequests
	p.numPedestrianCrossing = s.NumPedestrianCrossing
}
