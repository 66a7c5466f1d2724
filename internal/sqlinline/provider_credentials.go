package sqlinline

// Provider credentials live only on the server side; neither binary ever
// returns them over HTTP.

const QSelectProviderCredential = `--sql 8a8e0d52-7f5d-4f21-8b7d-f7d4b821eed7
select token
from provider_credentials
where provider = $1::text
  and revoked_at is null
limit 1;
`

const QUpsertProviderCredential = `--sql 6d4f5660-0f7c-4f73-a1f3-9ab6d5e6c7a3
insert into provider_credentials (id, provider, token, note, created_at, updated_at)
values (gen_random_uuid(), $1::text, $2::text, nullif($3::text, ''), now(), now())
on conflict (provider) do update set
    token = excluded.token,
    note = excluded.note,
    revoked_at = null,
    updated_at = now();
`

const QRevokeProviderCredential = `--sql 1f0b6c3e-52a4-4d8e-9c71-0c5e2b7a9d14
update provider_credentials
set revoked_at = now(),
    updated_at = now()
where provider = $1::text
  and revoked_at is null;
`

// QCreateProviderCredentials is applied by the credentials command with
// -migrate. It is idempotent.
const QCreateProviderCredentials = `--sql 3c2e9a41-6b0f-4d57-8e2a-5f71c9d0b8e6
create table if not exists provider_credentials (
    id          uuid primary key default gen_random_uuid(),
    provider    text not null unique,
    token       text not null,
    note        text,
    revoked_at  timestamptz,
    created_at  timestamptz not null default now(),
    updated_at  timestamptz not null default now()
);
`
