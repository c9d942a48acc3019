// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package realtime delivers typed change events to interested parts of
// the application.
//
// The Broker is an in-process stand-in for a server push channel: store
// writers publish events (message inserted, session renamed or deleted,
// profile updated) and views subscribe to the topics they render. The
// consuming side never sees the transport, only typed events on a
// channel, so a networked feed can replace the Broker without touching
// subscribers.
package realtime
