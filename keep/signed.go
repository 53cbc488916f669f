// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package keep

import (
	"errors"

	"go.mozilla.org/pkcs7"

	"github.com/saferwall/shrinkcore/log"
)

// ErrSignatureInvalid is returned by LoadSigned when the PKCS7 envelope
// fails verification against its embedded certificate chain.
var ErrSignatureInvalid = errors.New("keep: signature verification failed")

// ParseFunc parses the verified plaintext payload of a signed keep
// configuration file into a Configuration. Callers supply their own
// textual-rule parser; LoadSigned's job stops at "the bytes are
// authentic."
type ParseFunc func(plaintext []byte) (*Configuration, error)

// LoadSigned verifies a PKCS7-signed keep-configuration payload (the
// same envelope format this codebase already parses for Authenticode
// signatures) and, on success, hands the verified plaintext to parse.
// A keep configuration shipped this way lets a build pipeline trust
// rules from a third party without trusting its filesystem placement.
func LoadSigned(envelope []byte, parse ParseFunc, logger *log.Helper) (*Configuration, error) {
	if logger == nil {
		logger = log.NewHelper(log.NewFilter(log.NewStdLogger(discard{}), log.FilterLevel(log.LevelError)))
	}
	p7, err := pkcs7.Parse(envelope)
	if err != nil {
		logger.Errorf("keep: malformed PKCS7 envelope: %v", err)
		return nil, err
	}
	if err := p7.Verify(); err != nil {
		logger.Errorf("keep: %v", ErrSignatureInvalid)
		return nil, ErrSignatureInvalid
	}
	logger.Infof("keep: verified signed configuration (%d signer(s))", len(p7.Signers))
	return parse(p7.Content)
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
