// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

/*
Package agent provides the folderlink agent service, the webhook host that
runs registered plugins when the CRM posts a remote execution context.

# Overview

Each registration in the service file becomes a plugin with one mode:

  - provision: create the blob folder placeholder for a new record and
    write the folder URL back to it (see package provisioner)
  - reject: refuse the operation with a fixed message
  - query_json: run the FetchXML input parameter against the record store
    and return the rows as JSON

The host delivers an execution context to

	POST /api/v1/plugins/{name}/execute

and receives an ExecuteResponse. Failures keep the plugin error message
the host shows to the user, and the HTTP status reflects the failure kind:
400 for configuration and missing identifiers, 502 for the storage service
or the record store, 403 for rejections.

# Orphaned placeholders

When the record write-back fails and the compensating delete fails too, the
placeholder is recorded in a Redis-backed ledger. Operators list and clear
entries with

	GET    /api/v1/orphans?limit=100
	DELETE /api/v1/orphans?url=<placeholder url>

# Usage

	// Start the agent service
	agent.Run()

	// The agent reads configuration from environment variables:
	// PORT               - HTTP server port (default: 8080)
	// FOLDERLINK_CONFIG  - service file (default: config/folderlink.yaml)
	// DATABASE_URL       - overrides record_store.connection_url
	// REDIS_URL          - overrides ledger.redis_url
	// WEBHOOK_JWT_SECRET - HS256 secret for webhook bearer tokens

# Metrics

Prometheus metrics are served at /metrics:

  - folderlink_provisioning_total - executions by registration and outcome
  - folderlink_placeholder_duration_milliseconds - placeholder upload latency
  - folderlink_orphaned_placeholders_total - placeholders left unlinked
*/
package agent
