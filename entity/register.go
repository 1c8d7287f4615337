/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package entity

import "github.com/cityflow/actorcity/internal/journal"

func init() {
	journal.Register(IdentityArrived{})
	journal.Register(NoDuplicate{})
	journal.Register(MobileEntityArrived{})
	journal.Register(MobileEntityGone{})
	journal.Register(MobileEntitySleeping{})
	journal.Register(MobileEntityWakingUp{})
}
