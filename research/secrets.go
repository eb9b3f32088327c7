/*
	Research
	Copyright (c) 2024 The Research Authors

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU Affero General Public License as published
	by the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU Affero General Public License for more details.

	You should have received a copy of the GNU Affero General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package research

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// DefaultUserID identifies the single installation user that owns
// the secrets row.
const DefaultUserID int64 = 0

// Secrets holds provider credentials for the default user. It is
// read once per command invocation and treated as immutable for the
// duration of that command; persisting updated secrets (after an
// authentication) is a distinct operation.
type Secrets struct {
	PocketConsumerKey string
	PocketAccessToken string
	UserID            int64
}

// Secrets loads the credentials of the default user. A library that
// has never authenticated yields empty secrets, not an error.
func (l *Library) Secrets(ctx context.Context) (Secrets, error) {
	var s Secrets
	var consumerKey, accessToken sql.NullString

	l.dbMu.RLock()
	err := l.db.QueryRowContext(ctx,
		`SELECT user_id, pocket_consumer_key, pocket_access_token FROM secrets WHERE user_id=? LIMIT 1`,
		DefaultUserID).Scan(&s.UserID, &consumerKey, &accessToken)
	l.dbMu.RUnlock()
	if errors.Is(err, sql.ErrNoRows) {
		return Secrets{UserID: DefaultUserID}, nil
	}
	if err != nil {
		return s, fmt.Errorf("querying secrets: %w", err)
	}

	s.PocketConsumerKey = consumerKey.String
	s.PocketAccessToken = accessToken.String
	return s, nil
}

// SetSecrets persists credentials for the default user.
func (l *Library) SetSecrets(ctx context.Context, s Secrets) error {
	l.dbMu.Lock()
	_, err := l.db.ExecContext(ctx,
		`UPDATE secrets SET pocket_consumer_key=?, pocket_access_token=? WHERE user_id=?`,
		nullIfEmpty(s.PocketConsumerKey), nullIfEmpty(s.PocketAccessToken), DefaultUserID)
	l.dbMu.Unlock()
	if err != nil {
		return fmt.Errorf("updating secrets row: %w", err)
	}
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
