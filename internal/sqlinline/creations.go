package sqlinline

const QInsertCreation = `--sql 7f1c2d9e-4a58-4b0f-9c6d-2e8f5a1b3c47
insert into creations(id, owner_id, kind, prompt, result, plan, published, likes, created_at)
values ($1::uuid, $2::text, $3::text, $4::text, $5::text, $6::text, false, '{}'::text[], now())
returning created_at;
`

const QListCreationsByOwner = `--sql 0b9e6f21-8d34-47ac-b5e2-91c7d4a6f083
select id, owner_id, kind, prompt, result, plan, published, likes, created_at
from creations
where owner_id = $1
order by created_at desc;
`

const QListPublishedCreations = `--sql c4d81a57-2f6b-49e3-8a90-5b3e7c1d9f26
select id, owner_id, kind, prompt, result, plan, published, likes, created_at
from creations
where published
order by created_at desc;
`

// QToggleCreationLike flips the caller's membership bit inside a single
// statement so concurrent togglers on the same creation never overwrite
// each other's update. RETURNING reflects the post-update row.
const QToggleCreationLike = `--sql 5e2a7c90-6b1d-4f38-a4c5-d97e0f3b8a61
update creations
set likes = case
  when $2::text = any(likes) then array_remove(likes, $2::text)
  else array_append(likes, $2::text)
end
where id = $1::uuid
returning $2::text = any(likes), cardinality(likes), likes;
`

const QToggleCreationPublish = `--sql 93f0b4d6-1e7a-45c2-bd58-6a2c9e8f0d35
update creations
set published = not published
where id = $1::uuid and owner_id = $2
returning published;
`
