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
Command agent runs the folderlink agent, the webhook host that links new CRM
records to blob storage folders.

# Usage

	agent

# Environment Variables

Optional:
  - PORT: HTTP server port (default: 8080)
  - FOLDERLINK_CONFIG: service file (default: config/folderlink.yaml)
  - DATABASE_URL: overrides the record store connection URL
  - REDIS_URL: overrides the orphan ledger Redis URL
  - WEBHOOK_JWT_SECRET: enables bearer token checks on webhook deliveries

Secret references in the service file are resolved through the provider in
its secrets section (env, local or aws).
*/
package main
