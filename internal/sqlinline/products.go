package sqlinline

const QSelectProductByID = `--sql 33a02663-bea5-4b85-af79-dd0842c45161
select id, name, brand, category, price::float8, currency, coalesce(description, ''), images
from products
where id = $1::int
limit 1;
`

// QListProducts filters by optional category and case-insensitive search.
// Ordering is applied in Go so the collation matches the JSON catalog.
const QListProducts = `--sql 3495ed78-e01f-4f3c-95ad-b46d9f3d55b0
select id, name, brand, category, price::float8, currency, coalesce(description, ''), images
from products
where ($1::text = '' or lower(category) = lower($1::text))
  and ($2::text = '' or name ilike '%' || $2::text || '%' or brand ilike '%' || $2::text || '%');
`
