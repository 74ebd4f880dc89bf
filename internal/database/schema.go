package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is idempotent.  Deleting a tour removes its guide links and
// reviews; deleting a user removes their reviews.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id                     CHAR(36)     NOT NULL PRIMARY KEY,
	name                   VARCHAR(255) NOT NULL,
	email                  VARCHAR(255) NOT NULL,
	photo                  VARCHAR(255) NOT NULL DEFAULT 'default.jpg',
	role                   VARCHAR(20)  NOT NULL DEFAULT 'user',
	password               VARCHAR(72)  NOT NULL,
	password_changed_at    DATETIME     NULL,
	password_reset_token   CHAR(64)     NULL,
	password_reset_expires DATETIME     NULL,
	active                 BOOLEAN      NOT NULL DEFAULT TRUE,
	created_at             DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE KEY uq_users_email (email),
	KEY idx_users_reset (password_reset_token)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

CREATE TABLE IF NOT EXISTS tours (
	id               CHAR(36)      NOT NULL PRIMARY KEY,
	name             VARCHAR(40)   NOT NULL,
	slug             VARCHAR(64)   NOT NULL,
	duration         INT           NOT NULL,
	max_group_size   INT           NOT NULL,
	difficulty       VARCHAR(10)   NOT NULL,
	ratings_average  DOUBLE        NOT NULL DEFAULT 4.5,
	ratings_quantity INT           NOT NULL DEFAULT 0,
	price            DOUBLE        NOT NULL,
	price_discount   DOUBLE        NULL,
	summary          VARCHAR(1000) NOT NULL,
	description      TEXT          NULL,
	image_cover      VARCHAR(255)  NOT NULL,
	images           JSON          NOT NULL,
	start_dates      JSON          NOT NULL,
	secret_tour      BOOLEAN       NOT NULL DEFAULT FALSE,
	start_location   JSON          NULL,
	locations        JSON          NOT NULL,
	created_at       DATETIME      NOT NULL DEFAULT CURRENT_TIMESTAMP,
	version          INT           NOT NULL DEFAULT 0,
	UNIQUE KEY uq_tours_name (name),
	KEY idx_tours_price_rating (price, ratings_average),
	KEY idx_tours_slug (slug)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

CREATE TABLE IF NOT EXISTS tour_guides (
	tour_id  CHAR(36) NOT NULL,
	user_id  CHAR(36) NOT NULL,
	position INT      NOT NULL DEFAULT 0,
	PRIMARY KEY (tour_id, user_id),
	CONSTRAINT fk_tour_guides_tour FOREIGN KEY (tour_id) REFERENCES tours (id) ON DELETE CASCADE,
	CONSTRAINT fk_tour_guides_user FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

CREATE TABLE IF NOT EXISTS reviews (
	id         CHAR(36)      NOT NULL PRIMARY KEY,
	review     VARCHAR(2000) NOT NULL,
	rating     DOUBLE        NOT NULL DEFAULT 4.5,
	created_at DATETIME      NOT NULL DEFAULT CURRENT_TIMESTAMP,
	tour_id    CHAR(36)      NOT NULL,
	user_id    CHAR(36)      NOT NULL,
	KEY idx_reviews_tour (tour_id),
	CONSTRAINT fk_reviews_tour FOREIGN KEY (tour_id) REFERENCES tours (id) ON DELETE CASCADE,
	CONSTRAINT fk_reviews_user FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
`

// Migrate creates any missing table.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
