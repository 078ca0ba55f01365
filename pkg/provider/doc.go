// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

// Package provider defines the resource model and service interfaces of the
// cloud provider the provisioner converges against, together with the error
// taxonomy shared by all components. The provider is a remote, stateful
// service with eventually-consistent reads; nothing in this package performs
// I/O itself.
package provider
