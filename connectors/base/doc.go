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
Package base provides the error taxonomy and shared validation helpers used by
every folderlink connector.

# Provisioning Errors

Each stage of the create-placeholder-and-link workflow reports failures as a
*ProvisionError carrying an ErrorKind:

	KindNotApplicable        trigger was not a creation event (silent no-op)
	KindMissingIdentifier    creation event without a record id
	KindConfig               account, container, credential or options invalid
	KindRemoteCreateFailed   placeholder PUT returned non-2xx or timed out
	KindLinkUpdateFailed     folder URL write-back failed
	KindOrphanedPlaceholder  write-back and compensating delete both failed
	KindUnexpected           anything else

Callers classify with KindOf / IsKind, which walk the wrap chain:

	if base.IsKind(err, base.KindConfig) {
	    field, _ := base.ConfigFieldOf(err)
	    log.Printf("bad configuration value: %s", field)
	}

The host only ever sees a *PluginError, whose message starts with
"Error in plugin: " and whose Unwrap returns the classified cause.

# Connector Errors

Connector-level failures (record stores, ledgers) are wrapped in
ConnectorError for consistent handling:

	err := writer.Update(ctx, "incident", id, fields)
	var connErr *base.ConnectorError
	if errors.As(err, &connErr) {
	    log.Printf("Connector: %s, Operation: %s, Message: %s",
	        connErr.ConnectorName, connErr.Operation, connErr.Message)
	}

# Health

Record stores and the orphan ledger implement HealthChecker. Probe times a
ping and Check turns any checker into a non-nil HealthStatus:

	func (l *RedisLedger) HealthCheck(ctx context.Context) (*base.HealthStatus, error) {
	    return base.Probe(ctx, func(ctx context.Context) error {
	        return l.client.Ping(ctx).Err()
	    }), nil
	}

# Security Helpers

ValidateURL guards configurable endpoints against SSRF without resolving
names; OperatorEndpointOptions permits private addresses for emulators and
on-premises hosts. ValidatePathSegment
keeps account and container names from reshaping a blob URL,
ValidateSQLIdentifier protects table and column names, and SanitizeLogString
strips log-injection characters.
*/
package base
