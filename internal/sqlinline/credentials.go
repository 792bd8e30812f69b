package sqlinline

const QSelectCredential = `--sql 09c7d4f8-62ab-4e15-83fd-b49e0a267c31
select
  api_key,
  requested_at is not null,
  granted_at is not null
from integration_credentials
where service = $1::text
limit 1;
`

const QUpsertCredentialGrant = `--sql a5e8203d-7c91-4b46-9e0f-1d6b84f3c752
insert into integration_credentials (id, service, api_key, properties, granted_at, created_at, updated_at)
values (gen_random_uuid(), $1::text, $2::text, coalesce($3::jsonb, '{}'::jsonb), now(), now(), now())
on conflict (service) do update set
    api_key = excluded.api_key,
    properties = excluded.properties,
    granted_at = now(),
    updated_at = now();
`

const QMarkCredentialRequested = `--sql 48b6f1c0-3d5e-4a89-bd27-960c4e8a1f35
insert into integration_credentials (id, service, api_key, requested_at, created_at, updated_at)
values (gen_random_uuid(), $1::text, '', now(), now(), now())
on conflict (service) do update set
    requested_at = coalesce(integration_credentials.requested_at, now()),
    updated_at = now();
`

const QRevokeCredentialGrant = `--sql d2a90b5e-8f14-4c67-a3b8-57e01f9d246c
update integration_credentials
set granted_at = null,
    updated_at = now()
where service = $1::text;
`
