/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package mobile

import "github.com/cityflow/actorcity/internal/journal"

func init() {
	journal.Register(RouteAssigned{})
	journal.Register(Advanced{})
	journal.Register(PredecessorGoneRecorded{})
	journal.Register(VehicleIDsUpdated{})
}
