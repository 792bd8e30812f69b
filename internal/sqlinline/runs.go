package sqlinline

const QInsertRun = `--sql 9b2c51da-6f0e-4b8a-9c3d-2f1e8a7b6c5d
insert into cleaning_runs (
  id,
  kind,
  phase,
  message,
  percent,
  source_key,
  source_mime,
  locale,
  country,
  created_at,
  updated_at
) values (
  $1::uuid,
  $2::text,
  'idle',
  $3::text,
  0,
  $4::text,
  $5::text,
  $6::text,
  $7::text,
  now(),
  now()
);
`

const QSelectRunByID = `--sql 3e8f0a12-77cd-4d26-8b4e-91d2c0a7f3b8
select
  id,
  kind,
  phase,
  message,
  percent,
  error_message,
  source_key,
  source_mime,
  coalesce(result_asset_id::text, ''),
  access_requested,
  locale,
  country,
  created_at,
  updated_at
from cleaning_runs
where id = $1::uuid
limit 1;
`

const QClaimNextRun = `--sql 5a9d47c1-2b6e-4f38-a1c7-8e05d9b3f264
with next_run as (
    select id
    from cleaning_runs
    where phase = 'idle' and not access_requested
    order by created_at asc
    for update skip locked
    limit 1
)
update cleaning_runs
set phase = 'processing',
    message = '',
    percent = 0,
    error_message = '',
    result_asset_id = null,
    updated_at = now()
where id in (select id from next_run)
returning
  id,
  kind,
  phase,
  message,
  percent,
  error_message,
  source_key,
  source_mime,
  coalesce(result_asset_id::text, ''),
  access_requested,
  locale,
  country,
  created_at,
  updated_at;
`

const QSaveRunProgress = `--sql c4821f6b-93ad-4e57-b2f0-6a1d85c97e43
update cleaning_runs
set phase = $2::text,
    message = $3::text,
    percent = $4::int,
    error_message = $5::text,
    result_asset_id = nullif($6::text, '')::uuid,
    updated_at = now()
where id = $1::uuid;
`

const QParkRunAwaitingAccess = `--sql 1d7e93a5-48bf-4c02-95e8-3b6a0f24d871
update cleaning_runs
set phase = 'idle',
    access_requested = true,
    message = $2::text,
    percent = 0,
    updated_at = now()
where id = $1::uuid;
`

const QReleaseParkedRuns = `--sql 86f2b0d9-15ce-47a3-b9d4-e72c81f605ba
update cleaning_runs
set access_requested = false,
    updated_at = now()
where phase = 'idle' and access_requested;
`

const QListRecentRuns = `--sql f03a76e8-29bd-4581-a6cf-4d90e21b783c
select
  id,
  kind,
  phase,
  message,
  percent,
  error_message,
  source_key,
  source_mime,
  coalesce(result_asset_id::text, ''),
  access_requested,
  locale,
  country,
  created_at,
  updated_at
from cleaning_runs
order by created_at desc
limit $1::int;
`

const QListUnsettledRuns = `--sql 6c5d12af-80be-49e7-9132-fa8b04c6e5d9
select
  id,
  kind,
  phase,
  message,
  percent,
  error_message,
  source_key,
  source_mime,
  coalesce(result_asset_id::text, ''),
  access_requested,
  locale,
  country,
  created_at,
  updated_at
from cleaning_runs
where phase = 'processing' or updated_at >= $1::timestamptz
order by updated_at asc;
`

const QSweepFinishedRuns = `--sql b8e04f27-d1a6-4c93-8f5b-072e9a14c68d
with expired as (
    select id, source_key
    from cleaning_runs
    where phase in ('succeeded', 'failed') and updated_at < $1::timestamptz
),
removed_assets as (
    delete from run_assets
    where run_id in (select id from expired)
    returning storage_key
),
removed_runs as (
    delete from cleaning_runs
    where id in (select id from expired)
)
select storage_key from removed_assets
union
select source_key from expired;
`
