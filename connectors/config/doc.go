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
Package config resolves the configuration folder provisioning runs with.

# Plugin Configuration

Each registration carries two strings. The unsecure string is a list of
key=value pairs separated by ';'. Keys match case-insensitively:

	Account=casefiles;Container=cases;Timeout=15s

Account (or StorageAccount) and Container are required. The optional keys
Timeout, FolderUrlField, Compensate, Endpoint and Client tune the call and
are read by ResolveOptions.

The secure string is the SAS token. One leading '?' is stripped:

	cfg, err := config.ResolveProvisioning(unsecure, "?sv=2023-11-03&sig=...")
	if err != nil {
	    // *base.ProvisionError with Kind KindConfig and the offending Field
	}

Validation reports the first problem in the order account, container,
credential. ProvisioningConfig.String never prints the credential.

# Service Configuration

The webhook agent reads a YAML file listing registrations, the record store
and the orphan ledger. ${VAR} and ${VAR:-default} references are expanded
from the environment before parsing:

	loader, err := config.NewYAMLConfigFileLoader("/etc/folderlink/config.yaml")
	regs, err := loader.LoadRegistrations()

A registration may name its secure string indirectly with secure_config_ref,
resolved through a SecretsManager (AWS Secrets Manager, environment
variables or an in-process map).

# Thread Safety

Parsing functions are pure. The secrets managers are safe for concurrent use.
*/
package config
