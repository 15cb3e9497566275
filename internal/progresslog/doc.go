// Copyright (c) 2020 The Decred developers
// Copyright (c) 2026 The rpcweb developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package progresslog provides periodic logging for received node notifications.

Tests are included to ensure proper functionality.

## Feature Overview

- Maintains cumulative totals about notifications between each logging interval
  - Total number of notifications
  - Number of notifications per topic
  - Total payload bytes
- Logs all cumulative data every 10 seconds
- Immediately logs any outstanding data when forced, such as on shutdown
*/
package progresslog
