// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package shrinkcore

// Version is the module's release version, printed by cmd/shrinkctl's
// version sub-command.
const Version = "0.1.0"
