// Copyright 2025 AxonFlow
// Licensed under the Apache License, Version 2.0

/*
Package records writes folder URLs back to the record that triggered their
creation.

# Writers

Every writer implements Writer:

	Update(ctx, entity, id, map[string]any{"crad2_folderurl": url})

  - DataverseWriter PATCHes /api/data/v9.2/{entityset}({id}) with If-Match: *
  - SQLWriter issues UPDATE {table} SET ... WHERE id = ... on PostgreSQL
    (lib/pq) or MySQL (go-sql-driver/mysql)
  - MongoWriter runs UpdateOne with $set on the document keyed by the id
  - MemoryWriter keeps records in process for local runs and tests

An update that matches no record returns an error wrapping ErrNotFound.
Table, column and field names are checked with base.ValidateSQLIdentifier
before they reach a statement.

# Queries

DataverseWriter and SQLWriter also implement Querier. Dataverse accepts a
FetchXML document; the SQL writer accepts a single SELECT statement.
*/
package records
