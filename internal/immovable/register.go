/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package immovable

import "github.com/cityflow/actorcity/internal/journal"

func init() {
	journal.Register(VehicleAdmitted{})
	journal.Register(LastVehicleCleared{})
	journal.Register(VehicleFreeMarked{})
	journal.Register(TokenGranted{})
	journal.Register(TokenReleased{})
	journal.Register(CrossingQueued{})
	journal.Register(PedestrianCrossingGranted{})
	journal.Register(VehicleCrossingGranted{})
	journal.Register(CrossingLeft{})
	journal.Register(PhaseFlipped{})
	journal.Register(PedestrianQueued{})
	journal.Register(VehicleQueued{})
	journal.Register(VehicleDwelling{})
	journal.Register(VehicleDeparted{})
	journal.Register(PassThroughRecorded{})
}
