// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package rpserver is a small relying-party web application built on
// authflow. It serves /login, /callback, /healthz and /metrics and keeps the
// pending authorization in a cookie-keyed session.
package rpserver
