package sqlinline

const QSelectIntegrationToken = `--sql 3f1b7c2e-91d4-4a6f-b0c8-5e2d7a914c36
select token, coalesce(properties, '{}'::jsonb)
from integration_tokens
where provider = $1::text
limit 1;
`

const QUpsertIntegrationToken = `--sql b6e0a4d9-2c7f-4e1a-9d35-7f8c1e6a2b40
insert into integration_tokens (id, provider, token, properties, created_at, updated_at)
values (gen_random_uuid(), $1::text, $2::text, coalesce($3::jsonb, '{}'::jsonb), now(), now())
on conflict (provider) do update set
    token = excluded.token,
    properties = excluded.properties,
    updated_at = now();
`
