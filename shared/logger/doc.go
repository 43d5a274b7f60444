// Copyright 2025 AxonFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

/*
Package logger provides structured JSON logging with credential redaction
for folderlink components.

# Overview

Each log entry is a single JSON line and includes:
  - Timestamp (RFC3339Nano format)
  - Log level (DEBUG, INFO, WARN, ERROR)
  - Component name (agent, provisioner, ...)
  - Instance ID and container name
  - Registration (the plugin registration handling the event)
  - Correlation ID (the host's correlation id for the delivery)
  - Custom fields

# Usage

	log := logger.New("provisioner").WithSecrets(secureConfig)

	log.Info("case-folders", "corr-456", "Folder created", map[string]interface{}{
	    "blob_path": ref.BlobPath,
	})

	log.ErrorWithCode("case-folders", "corr-456", "Placeholder failed", 403, err, nil)

# Redaction

Messages and string fields (including errors and fmt.Stringer values) pass
through a Redactor before they are written. The redactor always masks SAS
signatures (sig=...) and the query string of any *.blob.core.windows.net URL.
WithSecrets registers literal values, such as the secure configuration, to
be masked wherever they appear; a leading '?' is ignored when matching.

# Tracing

TraceSink adapts a Logger to the write-only Trace(format, args...) interface
the provisioning workflow accepts.

# Environment Variables

  - INSTANCE_ID: Deployment instance identifier
  - HOSTNAME: Container hostname (auto-detected)

# Thread Safety

Logger instances are safe for concurrent use from multiple goroutines.
*/
package logger
