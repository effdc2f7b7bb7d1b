// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package action

import (
	"github.com/iotexproject/iotex-address/address"
	"github.com/pkg/errors"

	"github.com/iotexproject/iotex-npos/pkg/perbill"
)

// OffenceDetails names an offending validator stash and who reported it
type OffenceDetails struct {
	Offender  address.Address
	Reporters []address.Address
}

// ReportOffence feeds offences detected by consensus into the slashing engine. Requires the root origin.
type ReportOffence struct {
	offenders    []OffenceDetails
	fractions    []perbill.Perbill
	slashSession uint32
}

// NewReportOffence returns a ReportOffence instance, fractions are matched to offenders by position
func NewReportOffence(offenders []OffenceDetails, fractions []perbill.Perbill, slashSession uint32) *ReportOffence {
	return &ReportOffence{
		offenders:    append([]OffenceDetails(nil), offenders...),
		fractions:    append([]perbill.Perbill(nil), fractions...),
		slashSession: slashSession,
	}
}

// Offenders returns the offence details
func (r *ReportOffence) Offenders() []OffenceDetails { return r.offenders }

// Fractions returns the slash fractions
func (r *ReportOffence) Fractions() []perbill.Perbill { return r.fractions }

// SlashSession returns the session in which the offence happened
func (r *ReportOffence) SlashSession() uint32 { return r.slashSession }

// SanityCheck validates the variables in the action
func (r *ReportOffence) SanityCheck() error {
	if len(r.offenders) == 0 {
		return errors.Wrap(ErrEmptyList, "no offenders")
	}
	if len(r.offenders) != len(r.fractions) {
		return errors.Errorf("%d offenders but %d fractions", len(r.offenders), len(r.fractions))
	}
	for _, o := range r.offenders {
		if err := checkAddress(o.Offender); err != nil {
			return err
		}
	}
	return nil
}
