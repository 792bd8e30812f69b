package sqlinline

const QInsertRunAsset = `--sql 2f9c84b1-e7d0-4a65-bc28-59d1637fa0e4
insert into run_assets (
  id,
  run_id,
  kind,
  role,
  storage_key,
  mime,
  bytes,
  width,
  height,
  created_at
) values (
  $1::uuid,
  $2::uuid,
  $3::text,
  $4::text,
  $5::text,
  $6::text,
  $7::bigint,
  $8::int,
  $9::int,
  now()
);
`

const QSelectRunAssetByID = `--sql 74d0c9e2-1fb8-4356-92ae-c85b7d4f1a09
select id, run_id, kind, role, storage_key, mime, bytes, width, height, created_at
from run_assets
where id = $1::uuid
limit 1;
`

const QListRunAssetsByRun = `--sql e1b5380c-9a4d-4f72-b06e-83c2d75a91f6
select id, run_id, kind, role, storage_key, mime, bytes, width, height, created_at
from run_assets
where run_id = $1::uuid
order by created_at asc;
`
